package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read size used while hashing.
const ChunkSize = 8 * 1024

// HashFile returns the hex SHA-256 of the file at path, streaming it in
// ChunkSize reads.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(hasher, struct{ io.Reader }{file}, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
