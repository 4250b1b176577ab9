package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"

	"codescope/internal/scan"
)

// Mode selects how a file's identity is derived.
type Mode string

const (
	// ModeStat hashes path, modification time and size. No file read on a hit.
	ModeStat Mode = "stat"
	// ModeContent hashes path and content.
	ModeContent Mode = "content"
)

// Fingerprint identifies one state of one file and doubles as the cache key.
type Fingerprint string

// StatFingerprint derives a ModeStat fingerprint.
func StatFingerprint(f scan.File) Fingerprint {
	var b []byte
	b = append(b, f.Path...)
	b = append(b, '|')
	b = strconv.AppendInt(b, f.ModTime.UnixNano(), 10)
	b = append(b, '|')
	b = strconv.AppendInt(b, f.Size, 10)
	h := xxh3.Hash128(b)
	return Fingerprint(fmt.Sprintf("%s:%016x%016x", ModeStat, h.Hi, h.Lo))
}

// ContentFingerprint derives a ModeContent fingerprint from already-read bytes.
func ContentFingerprint(path string, src []byte) Fingerprint {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(src)
	return Fingerprint(string(ModeContent) + ":" + hex.EncodeToString(h.Sum(nil)))
}

// Compute fingerprints f in the given mode. In content mode the file bytes
// are returned as well so the caller does not read them twice.
func Compute(mode Mode, f scan.File) (Fingerprint, []byte, error) {
	if mode != ModeContent {
		return StatFingerprint(f), nil, nil
	}
	src, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return "", nil, err
	}
	return ContentFingerprint(f.Path, src), src, nil
}
