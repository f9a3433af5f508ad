package types

import (
	"errors"
	"fmt"
	"strings"
)

// BIP-173 bech32, the text form of addresses.

const (
	bech32Alphabet = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	bech32MaxLen   = 90
	checksumLen    = 6
)

var (
	ErrBech32Checksum = errors.New("bech32: bad checksum")
	ErrBech32Case     = errors.New("bech32: mixed case")
)

var bech32Gen = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

// polymod folds 5-bit values into the checksum state chk.
func polymod(chk uint32, values ...byte) uint32 {
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i, g := range bech32Gen {
			if top>>i&1 == 1 {
				chk ^= g
			}
		}
	}
	return chk
}

// hrpState is the checksum state after the expanded human-readable part.
func hrpState(hrp string) uint32 {
	chk := uint32(1)
	for i := 0; i < len(hrp); i++ {
		chk = polymod(chk, hrp[i]>>5)
	}
	chk = polymod(chk, 0)
	for i := 0; i < len(hrp); i++ {
		chk = polymod(chk, hrp[i]&31)
	}
	return chk
}

// EncodeBech32 encodes data under hrp.
func EncodeBech32(hrp string, data []byte) (string, error) {
	if hrp == "" {
		return "", errors.New("bech32: empty hrp")
	}
	for i := 0; i < len(hrp); i++ {
		if hrp[i] < 33 || hrp[i] > 126 {
			return "", fmt.Errorf("bech32: invalid hrp character %q", hrp[i])
		}
	}
	hrp = strings.ToLower(hrp)

	words, _ := regroup(data, 8, 5, true)
	chk := polymod(polymod(hrpState(hrp), words...), make([]byte, checksumLen)...) ^ 1

	var sb strings.Builder
	sb.Grow(len(hrp) + 1 + len(words) + checksumLen)
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, w := range words {
		sb.WriteByte(bech32Alphabet[w])
	}
	for i := checksumLen - 1; i >= 0; i-- {
		sb.WriteByte(bech32Alphabet[chk>>(5*i)&31])
	}
	return sb.String(), nil
}

// DecodeBech32 returns the human-readable part and payload of s.
func DecodeBech32(s string) (string, []byte, error) {
	switch {
	case s == "":
		return "", nil, errors.New("bech32: empty string")
	case len(s) > bech32MaxLen:
		return "", nil, fmt.Errorf("bech32: %d characters, max %d", len(s), bech32MaxLen)
	}
	lower := strings.ToLower(s)
	if lower != s && strings.ToUpper(s) != s {
		return "", nil, ErrBech32Case
	}

	sep := strings.LastIndexByte(lower, '1')
	if sep < 1 {
		return "", nil, errors.New("bech32: missing separator")
	}
	hrp, tail := lower[:sep], lower[sep+1:]
	if len(tail) < checksumLen {
		return "", nil, errors.New("bech32: too short")
	}

	words := make([]byte, len(tail))
	for i := 0; i < len(tail); i++ {
		v := strings.IndexByte(bech32Alphabet, tail[i])
		if v < 0 {
			return "", nil, fmt.Errorf("bech32: invalid character %q", tail[i])
		}
		words[i] = byte(v)
	}
	if polymod(hrpState(hrp), words...) != 1 {
		return "", nil, ErrBech32Checksum
	}

	data, ok := regroup(words[:len(words)-checksumLen], 5, 8, false)
	if !ok {
		return "", nil, errors.New("bech32: bad padding")
	}
	return hrp, data, nil
}

// regroup repacks data from groups of from bits into groups of to bits.
// Without pad, leftover bits must be fewer than from and all zero.
func regroup(data []byte, from, to uint, pad bool) ([]byte, bool) {
	var (
		acc uint32
		n   uint
	)
	mask := uint32(1)<<to - 1
	out := make([]byte, 0, (len(data)*int(from)+int(to)-1)/int(to))
	for _, b := range data {
		if uint32(b)>>from != 0 {
			return nil, false
		}
		acc = acc<<from | uint32(b)
		n += from
		for n >= to {
			n -= to
			out = append(out, byte(acc>>n&mask))
		}
	}
	if pad {
		if n > 0 {
			out = append(out, byte(acc<<(to-n)&mask))
		}
		return out, true
	}
	return out, n < from && acc<<(to-n)&mask == 0
}
