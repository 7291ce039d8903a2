package wallet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	dir := t.TempDir()
	ks, err := NewKeystore(dir)
	if err != nil {
		t.Fatalf("NewKeystore() error: %v", err)
	}
	return ks
}

func testSeedBytes(t *testing.T) []byte {
	t.Helper()
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func TestKeystore_CreateAndLoad(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)
	password := []byte("test-password")

	err := ks.Create("mywallet", seed, password, fastParams())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	loaded, err := ks.Load("mywallet", password)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !bytes.Equal(loaded, seed) {
		t.Error("loaded seed does not match original")
	}
}

func TestKeystore_CreateDuplicate(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	err := ks.Create("dup", seed, []byte("pass"), fastParams())
	if err != nil {
		t.Fatalf("first Create() error: %v", err)
	}

	err = ks.Create("dup", seed, []byte("pass"), fastParams())
	if err == nil {
		t.Error("second Create() should fail for duplicate name")
	}
}

func TestKeystore_LoadWrongPassword(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("correct"), fastParams())

	_, err := ks.Load("wallet", []byte("wrong"))
	if err == nil {
		t.Error("Load() with wrong password should fail")
	}
}

func TestKeystore_LoadNonexistent(t *testing.T) {
	ks := testKeystore(t)

	_, err := ks.Load("doesnotexist", []byte("pass"))
	if err == nil {
		t.Error("Load() for nonexistent wallet should fail")
	}
}

func TestKeystore_List(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	names, err := ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected 0 wallets, got %d", len(names))
	}

	ks.Create("alpha", seed, []byte("p"), fastParams())
	ks.Create("beta", seed, []byte("p"), fastParams())

	names, err = ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 wallets, got %d", len(names))
	}
}

func TestKeystore_Delete(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("todelete", seed, []byte("p"), fastParams())

	err := ks.Delete("todelete")
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	_, err = ks.Load("todelete", []byte("p"))
	if err == nil {
		t.Error("wallet should be deleted")
	}
}

func TestKeystore_DeleteNonexistent(t *testing.T) {
	ks := testKeystore(t)

	err := ks.Delete("ghost")
	if err == nil {
		t.Error("Delete() for nonexistent wallet should fail")
	}
}

func TestKeystore_AddAddress(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	err := ks.AddAddress("wallet", AddressEntry{
		Index:   0,
		Address: "abcdef0123456789abcdef0123456789abcdef01",
	})
	if err != nil {
		t.Fatalf("AddAddress() error: %v", err)
	}

	addrs, err := ks.ListAddresses("wallet")
	if err != nil {
		t.Fatalf("ListAddresses() error: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("expected 1 address, got %d", len(addrs))
	}
	if addrs[0].Index != 0 {
		t.Errorf("address index = %d, want 0", addrs[0].Index)
	}
}

func TestKeystore_AddAddressDuplicateIndex(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	ks.AddAddress("wallet", AddressEntry{Index: 0, Address: "aa"})

	err := ks.AddAddress("wallet", AddressEntry{Index: 0, Address: "bb"})
	if err == nil {
		t.Error("should reject duplicate address index")
	}
}

func TestKeystore_FilePermissions(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("secure", seed, []byte("p"), fastParams())

	path := filepath.Join(ks.path, "secure.wallet")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}

	perm := info.Mode().Perm()
	if perm&0077 != 0 {
		t.Errorf("wallet file should be 0600, got %o", perm)
	}
}

func TestKeystore_NextIndex(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	idx, err := ks.NextIndex("wallet")
	if err != nil {
		t.Fatalf("NextIndex: %v", err)
	}
	if idx != 0 {
		t.Errorf("initial index = %d, want 0", idx)
	}

	if err := ks.AdvanceIndex("wallet"); err != nil {
		t.Fatalf("AdvanceIndex: %v", err)
	}
	idx, _ = ks.NextIndex("wallet")
	if idx != 1 {
		t.Errorf("after first advance: index = %d, want 1", idx)
	}

	ks.AdvanceIndex("wallet")
	idx, _ = ks.NextIndex("wallet")
	if idx != 2 {
		t.Errorf("after second advance: index = %d, want 2", idx)
	}
}

func TestKeystore_NextIndex_Nonexistent(t *testing.T) {
	ks := testKeystore(t)

	_, err := ks.NextIndex("ghost")
	if err == nil {
		t.Error("NextIndex for nonexistent wallet should fail")
	}

	err = ks.AdvanceIndex("ghost")
	if err == nil {
		t.Error("AdvanceIndex for nonexistent wallet should fail")
	}
}

func TestKeystore_SetNextIndex(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	if err := ks.SetNextIndex("wallet", 5); err != nil {
		t.Fatalf("SetNextIndex: %v", err)
	}
	idx, _ := ks.NextIndex("wallet")
	if idx != 5 {
		t.Errorf("index = %d, want 5", idx)
	}

	if err := ks.SetNextIndex("wallet", 0); err != nil {
		t.Fatalf("SetNextIndex to 0: %v", err)
	}
	idx, _ = ks.NextIndex("wallet")
	if idx != 0 {
		t.Errorf("index = %d, want 0", idx)
	}

	if err := ks.SetNextIndex("ghost", 1); err == nil {
		t.Error("SetNextIndex for nonexistent wallet should fail")
	}
}

func TestKeystore_FullFlow(t *testing.T) {
	ks := testKeystore(t)
	password := []byte("strong-password")

	mnemonic, _ := GenerateMnemonic()
	seed, _ := SeedFromMnemonic(mnemonic, "")

	err := ks.Create("main", seed, password, fastParams())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	err = ks.AddAddress("main", AddressEntry{
		Index:   0,
		Address: "aa00112233445566778899aabbccddeeff00112233",
	})
	if err != nil {
		t.Fatalf("AddAddress() error: %v", err)
	}
	if err := ks.AdvanceIndex("main"); err != nil {
		t.Fatalf("AdvanceIndex() error: %v", err)
	}

	loaded, err := ks.Load("main", password)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Equal(loaded, seed) {
		t.Error("loaded seed mismatch")
	}

	addrs, _ := ks.ListAddresses("main")
	if len(addrs) != 1 {
		t.Error("address not persisted correctly")
	}
	idx, _ := ks.NextIndex("main")
	if idx != 1 {
		t.Errorf("next index = %d, want 1", idx)
	}
}
