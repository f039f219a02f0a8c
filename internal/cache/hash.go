package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const hashChunkSize = 32 << 10

// HashReader returns the hex SHA-256 digest of r, read in fixed-size chunks.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the content hash of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cache: hash: %w", err)
	}
	defer f.Close()
	sum, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("cache: hash %s: %w", path, err)
	}
	return sum, nil
}
