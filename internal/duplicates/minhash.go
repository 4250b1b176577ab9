package duplicates

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// hashTokens folds a token sequence into one 64-bit hash.
func hashTokens(tokens []token) uint64 {
	h := xxh3.New()
	for _, t := range tokens {
		h.WriteString(t.text)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// shingles hashes every window of k consecutive tokens. Sequences shorter
// than k produce a single shingle.
func shingles(tokens []token, k int) []uint64 {
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) < k {
		return []uint64{hashTokens(tokens)}
	}
	seen := make(map[uint64]bool, len(tokens)-k+1)
	out := make([]uint64, 0, len(tokens)-k+1)
	for i := 0; i+k <= len(tokens); i++ {
		s := hashTokens(tokens[i : i+k])
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// signature computes the MinHash signature with one seeded xxh3 per slot.
func signature(shingles []uint64, numHashes int) []uint64 {
	sig := make([]uint64, numHashes)
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	var buf [8]byte
	for _, s := range shingles {
		binary.LittleEndian.PutUint64(buf[:], s)
		for i := range sig {
			if h := xxh3.HashSeed(buf[:], uint64(i)); h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// similarity estimates Jaccard similarity as the share of equal slots.
func similarity(a, b []uint64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a))
}

// bandKeys hashes each band of rows signature slots, salted with the band
// index so equal slices in different bands never collide.
func bandKeys(sig []uint64, bands int) []uint64 {
	rows := len(sig) / bands
	keys := make([]uint64, bands)
	buf := make([]byte, 8*(rows+1))
	for b := 0; b < bands; b++ {
		binary.LittleEndian.PutUint64(buf, uint64(b))
		for r := 0; r < rows; r++ {
			binary.LittleEndian.PutUint64(buf[8*(r+1):], sig[b*rows+r])
		}
		keys[b] = xxh3.Hash(buf)
	}
	return keys
}
