package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/ledger/all"
	"github.com/Klingon-tech/walletkit/pkg/ledger/ethereum"
	"github.com/Klingon-tech/walletkit/pkg/ledger/hedera"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestKeystore(t *testing.T) (*Keystore, *walletkit.Registry, map[walletkit.Tag]*walletkit.Account) {
	t.Helper()
	ks, err := New(filepath.Join(t.TempDir(), "keys"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	reg := all.NewRegistry()
	accounts, err := ks.Create(reg, "main", testMnemonic, "", []byte("pw"), LightParams())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t.Cleanup(func() {
		for _, a := range accounts {
			a.Release()
		}
	})
	return ks, reg, accounts
}

func TestKeystore_CreateAndSeed(t *testing.T) {
	ks, reg, accounts := newTestKeystore(t)
	if len(accounts) != len(reg.InstalledTags()) {
		t.Fatalf("Create() returned %d accounts, want %d", len(accounts), len(reg.InstalledTags()))
	}

	want, _ := derive.SeedFromMnemonic(testMnemonic, "")
	seed, err := ks.Seed("main", []byte("pw"))
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	if !bytes.Equal(seed, want) {
		t.Fatal("Seed() differs from the mnemonic seed")
	}
	if _, err := ks.Seed("main", []byte("nope")); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Seed(wrong password) error = %v, want ErrWrongPassword", err)
	}
	if _, err := ks.Seed("missing", []byte("pw")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Seed(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := ks.Create(reg, "main", testMnemonic, "", []byte("pw"), LightParams()); !errors.Is(err, ErrExists) {
		t.Fatalf("Create(duplicate) error = %v, want ErrExists", err)
	}
	if _, err := ks.Create(reg, "bad", "abandon abandon", "", []byte("pw"), LightParams()); err == nil {
		t.Fatal("Create() with invalid mnemonic succeeded")
	}
	if _, err := ks.Create(reg, "../x", testMnemonic, "", []byte("pw"), LightParams()); err == nil {
		t.Fatal("Create() with path separator in name succeeded")
	}

	info, err := os.Stat(filepath.Join(ks.dir, "main.keystore"))
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("keystore mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestKeystore_Accounts(t *testing.T) {
	ks, reg, created := newTestKeystore(t)

	restored, err := ks.Accounts(reg, "main")
	if err != nil {
		t.Fatalf("Accounts() error: %v", err)
	}
	defer func() {
		for _, a := range restored {
			a.Release()
		}
	}()
	for tag, a := range created {
		r, ok := restored[tag]
		if !ok {
			t.Fatalf("Accounts() missing %s", tag)
		}
		if r.UIDs() != a.UIDs() {
			t.Errorf("%s UIDs = %s, want %s", tag, r.UIDs(), a.UIDs())
		}
	}
	if got := restored[walletkit.TagEthereum].Address().String(); got != "0x9858EfFD232B4033E47d90003D41EC34EcaEda94" {
		t.Fatalf("eth address = %s", got)
	}

	// A registry without every ledger restores only what it knows.
	small := walletkit.NewRegistry()
	ethereum.Install(small)
	partial, err := ks.Accounts(small, "main")
	if err != nil {
		t.Fatalf("Accounts(partial registry) error: %v", err)
	}
	if len(partial) != 1 || partial[walletkit.TagEthereum] == nil {
		t.Fatalf("Accounts(partial registry) = %v", partial)
	}
	partial[walletkit.TagEthereum].Release()
}

func TestKeystore_SaveAccount(t *testing.T) {
	ks, reg, created := newTestKeystore(t)
	acct := created[walletkit.TagHedera]
	if acct.Address() != nil {
		t.Fatal("hedera account has an address before initialization")
	}

	hbar := amount.NewCurrency("hedera-testnet:__native__", "Hbar", "HBAR", amount.TypeNative, "")
	tinybar := amount.NewBaseUnit(hbar, "hedera-testnet:tinybar", "tinybar", "t")
	n, err := walletkit.NewNetwork(reg, walletkit.NetworkSpec{
		UIDs:         "hedera-testnet",
		Tag:          hedera.Tag,
		Currency:     hbar,
		Associations: []walletkit.Association{{Currency: hbar, BaseUnit: tinybar}},
	})
	if err != nil {
		t.Fatalf("NewNetwork() error: %v", err)
	}
	if err := n.InitializeAccount(acct, []byte("0.0.4321")); err != nil {
		t.Fatalf("InitializeAccount() error: %v", err)
	}
	if err := ks.SaveAccount("main", acct); err != nil {
		t.Fatalf("SaveAccount() error: %v", err)
	}

	restored, err := ks.Accounts(reg, "main")
	if err != nil {
		t.Fatalf("Accounts() error: %v", err)
	}
	defer func() {
		for _, a := range restored {
			a.Release()
		}
	}()
	if got := restored[walletkit.TagHedera].Address(); got == nil || got.String() != "0.0.4321" {
		t.Fatalf("restored hedera address = %v", got)
	}
}

func TestKeystore_ListDelete(t *testing.T) {
	ks, reg, _ := newTestKeystore(t)
	second, err := ks.Create(reg, "alt", testMnemonic, "TREZOR", []byte("pw"), LightParams())
	if err != nil {
		t.Fatalf("Create(alt) error: %v", err)
	}
	for _, a := range second {
		a.Release()
	}
	os.WriteFile(filepath.Join(ks.dir, "notes.txt"), []byte("x"), 0600)

	names, err := ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 2 || names[0] != "alt" || names[1] != "main" {
		t.Fatalf("List() = %v", names)
	}
	if err := ks.Delete("alt"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := ks.Delete("alt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) error = %v, want ErrNotFound", err)
	}
	if names, _ := ks.List(); len(names) != 1 {
		t.Fatalf("List() after Delete() = %v", names)
	}
}
