// Package fileid derives stable identifiers and content fingerprints for source files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes chunk UUIDs to this application.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kensaku:chunk"))

// Normalize returns the cleaned absolute form of path used as the source key.
// If the working directory is unavailable the cleaned path is returned as is.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// ChunkID returns a deterministic chunk identifier. The same path, content fingerprint and
// position always yield the same ID, so re-ingesting unchanged content reproduces the chunk set.
func ChunkID(sourcePath, fingerprint string, index int) string {
	name := filepath.Clean(sourcePath) + "\x00" + fingerprint + "\x00" + strconv.Itoa(index)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// Fingerprint returns the hex SHA-256 of the file's bytes.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintBytes returns the hex SHA-256 of content.
func FingerprintBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
