// Haikunode full node daemon: validates blocks against the flat
// ledger, serves peers over libp2p, answers read-only RPC queries, and
// optionally mines.
//
// Usage:
//
//	haikunoded [--mine --miner-address=<hex>]  Run the node
//	haikunoded --help                          Show help
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haikuchain/haikunode/config"
	"github.com/haikuchain/haikunode/internal/banstore"
	klog "github.com/haikuchain/haikunode/internal/log"
	"github.com/haikuchain/haikunode/internal/node"
	"github.com/haikuchain/haikunode/internal/p2p"
	"github.com/haikuchain/haikunode/internal/rpc"
	"github.com/haikuchain/haikunode/internal/storage"
	"github.com/haikuchain/haikunode/pkg/blockfile"
)

// banPrefix namespaces the shared badger handle the same way
// internal/node does internally, so the P2P ban gater and the node's
// own ban store observe the same pink-listed peers.
var banPrefix = []byte("ban/")

func main() {
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Help {
		return
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = logsDir + "/haikunode.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("main")

	genesis := config.GenesisFor(cfg.Network)
	genesisHash, err := genesis.Hash()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to hash genesis")
	}
	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Msg("starting haikunode")

	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ChainDataDir()).Msg("failed to open database")
	}
	defer db.Close()

	n, err := node.New(cfg, genesis, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct node")
	}

	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		rpcServer = rpc.New(addr, n, cfg.RPC)
		if err := rpcServer.Start(); err != nil {
			logger.Fatal().Err(err).Str("addr", addr).Msg("failed to start RPC server")
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server listening")
	}

	var p2pNode *p2p.Node
	if cfg.P2P.Enabled {
		bans := banstore.New(storage.NewPrefixDB(db, banPrefix))
		if cfg.P2P.ClearBans {
			if _, err := bans.PruneExpired(^uint64(0)); err != nil {
				logger.Warn().Err(err).Msg("failed to clear bans")
			}
		}
		p2pNode, err = p2p.New(p2p.Config{
			ListenAddr:  cfg.P2P.ListenAddr,
			Port:        cfg.P2P.Port,
			Seeds:       cfg.P2P.Seeds,
			MaxPeers:    cfg.P2P.MaxPeers,
			NoDiscover:  cfg.P2P.NoDiscover,
			NetworkID:   string(cfg.Network),
			DataDir:     cfg.ChainDataDir(),
			GenesisHash: genesisHash,
		}, n, bans)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to construct P2P node")
		}
		if err := p2pNode.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start P2P node")
		}
		logger.Info().Str("id", p2pNode.ID().String()).Strs("addrs", p2pNode.Addrs()).Msg("P2P node listening")
	}

	stopMetrics := startMetricsServer("127.0.0.1:9191", n, p2pNode, logger)
	defer stopMetrics()

	var stopMining func()
	if cfg.Mining.Enabled {
		minerAddr, err := decodeMinerAddress(cfg.Mining.MinerAddress)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid --miner-address")
		}
		stopMining = startMiningLoop(n, p2pNode, minerAddr, cfg.Mining.Threads)
		defer stopMining()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	if p2pNode != nil {
		if err := p2pNode.Stop(); err != nil {
			logger.Warn().Err(err).Msg("error stopping P2P node")
		}
	}
	if rpcServer != nil {
		if err := rpcServer.Stop(); err != nil {
			logger.Warn().Err(err).Msg("error stopping RPC server")
		}
	}
}

func decodeMinerAddress(hexAddr string) ([blockfile.AddrLen]byte, error) {
	var out [blockfile.AddrLen]byte
	raw, err := hex.DecodeString(hexAddr)
	if err != nil {
		return out, fmt.Errorf("decode miner address: %w", err)
	}
	if len(raw) != blockfile.AddrLen {
		return out, fmt.Errorf("miner address is %d bytes, want %d", len(raw), blockfile.AddrLen)
	}
	copy(out[:], raw)
	return out, nil
}

// startMiningLoop repeatedly assembles and solves candidate blocks,
// committing each one locally through the same OnBlock path a fetched
// block takes, and gossiping the new tip to any connected peers.
func startMiningLoop(n *node.Node, p2pNode *p2p.Node, minerAddr [blockfile.AddrLen]byte, threads int) func() {
	_ = threads // puzzle.Generate is single-threaded per call; see internal/puzzle Open Questions
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			blockBytes, ok, err := n.MineCandidate(minerAddr, 1<<20)
			if err != nil || !ok {
				time.Sleep(time.Second)
				continue
			}
			action, err := n.OnBlock(blockBytes)
			if err != nil {
				klog.WithComponent("miner").Warn().Err(err).Msg("mined block rejected by own validator")
				continue
			}
			_ = action
			if p2pNode != nil {
				if err := p2pNode.BroadcastFound(); err != nil {
					klog.WithComponent("miner").Debug().Err(err).Msg("failed to broadcast found")
				}
			}
		}
	}()
	return func() { close(done) }
}
