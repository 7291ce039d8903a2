// Haikuwallet is a thin CLI stand-in for key management and read-only
// chain queries against a running haikunoded's RPC surface. It is not
// a transaction-signing wallet: WOTS key derivation and spend
// construction are out of scope here (see the module's wallet
// package), this binary only exercises keystore management and RPC
// reads end to end.
//
// Usage:
//
//	haikuwallet create   --wallet=<name>
//	haikuwallet list     --wallet=<name>
//	haikuwallet balance  --addr=<hex>
//	haikuwallet resolve  --tag=<hex>
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/haikuchain/haikunode/config"
	"github.com/haikuchain/haikunode/internal/identity"
	"github.com/haikuchain/haikunode/internal/rpcclient"
	"github.com/haikuchain/haikunode/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		cmdCreate(os.Args[2:])
	case "list":
		cmdList(os.Args[2:])
	case "balance":
		cmdBalance(os.Args[2:])
	case "resolve":
		cmdResolve(os.Args[2:])
	case "identity":
		cmdIdentity(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `haikuwallet commands:
  create   --wallet=<name> [--keystore=<dir>]      generate a mnemonic and create an encrypted wallet
  list     --wallet=<name> [--keystore=<dir>]       list addresses already bound in a wallet
  balance  --addr=<hex> [--rpc=<endpoint>]          query the committed balance of an address
  resolve  --tag=<hex> [--rpc=<endpoint>]           resolve a 12-byte tag to its bound address
  identity                                          generate a standalone handshake identity keypair`)
}

func defaultKeystoreDir() string {
	return config.DefaultDataDir() + "/wallets"
}

func cmdCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("wallet", "", "wallet name")
	dir := fs.String("keystore", defaultKeystoreDir(), "keystore directory")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "--wallet is required")
		os.Exit(1)
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate mnemonic: %v\n", err)
		os.Exit(1)
	}
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive seed: %v\n", err)
		os.Exit(1)
	}

	password, err := promptPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		os.Exit(1)
	}

	ks, err := wallet.NewKeystore(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open keystore: %v\n", err)
		os.Exit(1)
	}
	if err := ks.Create(*name, seed, password, wallet.DefaultParams()); err != nil {
		fmt.Fprintf(os.Stderr, "create wallet: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wallet %q created in %s\n", *name, *dir)
	fmt.Println("mnemonic (write this down, it is never stored on disk):")
	fmt.Println(mnemonic)
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	name := fs.String("wallet", "", "wallet name")
	dir := fs.String("keystore", defaultKeystoreDir(), "keystore directory")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "--wallet is required")
		os.Exit(1)
	}

	ks, err := wallet.NewKeystore(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open keystore: %v\n", err)
		os.Exit(1)
	}
	addrs, err := ks.ListAddresses(*name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list addresses: %v\n", err)
		os.Exit(1)
	}
	if len(addrs) == 0 {
		fmt.Println("no addresses bound yet")
		return
	}
	for _, a := range addrs {
		fmt.Printf("%d  tag=%s  addr=%s\n", a.Index, a.Tag, a.Address)
	}
}

func cmdBalance(args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	addrHex := fs.String("addr", "", "hex-encoded address")
	endpoint := fs.String("rpc", "http://127.0.0.1:8080", "RPC endpoint")
	fs.Parse(args)

	if *addrHex == "" {
		fmt.Fprintln(os.Stderr, "--addr is required")
		os.Exit(1)
	}

	client := rpcclient.New(*endpoint)
	balance, found, err := client.Balance(*addrHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Println("address not found in the committed ledger")
		return
	}
	fmt.Printf("%d\n", balance)
}

func cmdResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	tagHex := fs.String("tag", "", "hex-encoded 12-byte tag")
	endpoint := fs.String("rpc", "http://127.0.0.1:8080", "RPC endpoint")
	fs.Parse(args)

	if *tagHex == "" {
		fmt.Fprintln(os.Stderr, "--tag is required")
		os.Exit(1)
	}

	client := rpcclient.New(*endpoint)
	addrHex, found, err := client.Resolve(*tagHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Println("tag is not currently bound")
		return
	}
	fmt.Println(addrHex)
}

// cmdIdentity generates a standalone secp256k1 handshake identity
// keypair, the same kind a node persists for its P2P handshake, for
// operators who want to pre-provision one rather than let a node
// generate its own on first start.
func cmdIdentity(args []string) {
	_ = args
	key, err := identity.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate identity: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("private: %x\n", key.Bytes())
	fmt.Printf("public:  %x\n", key.PublicKey())
}

// promptPassword reads a password from stdin. It echoes input, unlike
// a real terminal prompt (golang.org/x/term is not part of this
// module's dependency set); fine for the CLI stand-in this is.
func promptPassword() ([]byte, error) {
	fmt.Fprint(os.Stderr, "wallet password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
