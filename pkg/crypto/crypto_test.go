package crypto

import (
	"bytes"
	"testing"

	"github.com/zeebo/blake3"
)

func key(t *testing.T, b byte) *PrivateKey {
	t.Helper()
	k, err := PrivateKeyFromBytes(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}
	return k
}

func TestHash(t *testing.T) {
	tests := []struct {
		name  string
		parts [][]byte
		want  string
	}{
		{"empty", nil, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{"hello", [][]byte{[]byte("hello")}, "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f"},
		{"split", [][]byte{[]byte("hel"), []byte("lo")}, "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hash(tt.parts...).String(); got != tt.want {
				t.Errorf("Hash() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAddressFromPubKey(t *testing.T) {
	k := key(t, 0x07)
	sum := blake3.Sum256(k.PublicKey())
	a := k.Address()
	if !bytes.Equal(a[:], sum[:20]) {
		t.Errorf("Address() = %x, want %x", a, sum[:20])
	}
	if key(t, 0x08).Address() == a {
		t.Error("different keys share an address")
	}
}

func TestPrivateKeyFromBytes_Length(t *testing.T) {
	for _, n := range []int{0, 31, 33} {
		if _, err := PrivateKeyFromBytes(make([]byte, n)); err == nil {
			t.Errorf("PrivateKeyFromBytes(%d bytes) expected error", n)
		}
	}
}

func TestSignVerify(t *testing.T) {
	k := key(t, 0x11)
	digest := Hash([]byte("walletkit"))
	sig, err := k.Sign(digest)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(sig) != 64 || len(k.PublicKey()) != 33 {
		t.Fatalf("sig %d bytes, pubkey %d bytes", len(sig), len(k.PublicKey()))
	}
	if !Verify(digest, sig, k.PublicKey()) {
		t.Fatal("valid signature rejected")
	}

	bad := bytes.Clone(sig)
	bad[5] ^= 0x01
	tests := []struct {
		name   string
		digest [32]byte
		sig    []byte
		pub    []byte
	}{
		{"wrong digest", Hash([]byte("other")), sig, k.PublicKey()},
		{"wrong key", digest, sig, key(t, 0x22).PublicKey()},
		{"corrupted", digest, bad, k.PublicKey()},
		{"short sig", digest, sig[:10], k.PublicKey()},
		{"no key", digest, sig, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify(tt.digest, tt.sig, tt.pub) {
				t.Error("Verify() = true")
			}
		})
	}
}

func TestPrivateKey_Zero(t *testing.T) {
	k := key(t, 0x33)
	k.Zero()
	if !bytes.Equal(k.Bytes(), make([]byte, 32)) {
		t.Error("Bytes() not zero after Zero()")
	}
}
