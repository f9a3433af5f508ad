package keystore

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrWrongPassword is returned when a sealed seed fails authentication.
var ErrWrongPassword = errors.New("wrong password or corrupted keystore")

const (
	saltSize = 16
	// sealed layout: version(1) | salt(16) | memory(4) | time(4) | threads(1) | nonce(24) | ciphertext
	sealVersion = 1
	headerSize  = 1 + saltSize + 4 + 4 + 1
)

// Params are the Argon2id cost parameters.
type Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
}

// DefaultParams returns the parameters used for new keystores.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Time: 3, Threads: 4}
}

// LightParams are cheap parameters for tests and throwaway keystores.
func LightParams() Params {
	return Params{Memory: 1024, Time: 1, Threads: 1}
}

func (p Params) key(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, chacha20poly1305.KeySize)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Seal encrypts plaintext under password with Argon2id and
// XChaCha20-Poly1305. The header is bound as associated data.
func Seal(plaintext, password []byte, p Params) ([]byte, error) {
	if p.Time == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("invalid argon2 parameters %+v", p)
	}
	header := make([]byte, headerSize)
	header[0] = sealVersion
	salt := header[1 : 1+saltSize]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	binary.BigEndian.PutUint32(header[1+saltSize:], p.Memory)
	binary.BigEndian.PutUint32(header[5+saltSize:], p.Time)
	header[9+saltSize] = p.Threads
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key := p.key(password, salt)
	defer zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	out := make([]byte, 0, headerSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, header), nil
}

// Open reverses Seal.
func Open(sealed, password []byte) ([]byte, error) {
	minSize := headerSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(sealed) < minSize {
		return nil, fmt.Errorf("sealed data too short: %d bytes, need at least %d", len(sealed), minSize)
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("unsupported seal version %d", sealed[0])
	}
	p := Params{
		Memory:  binary.BigEndian.Uint32(sealed[1+saltSize:]),
		Time:    binary.BigEndian.Uint32(sealed[5+saltSize:]),
		Threads: sealed[9+saltSize],
	}
	if p.Time == 0 || p.Threads == 0 {
		return nil, ErrWrongPassword
	}
	nonce := sealed[headerSize : headerSize+chacha20poly1305.NonceSizeX]

	key := p.key(password, sealed[1:1+saltSize])
	defer zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, sealed[headerSize+len(nonce):], sealed[:headerSize])
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
