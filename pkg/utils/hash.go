// pkg/utils/hash.go - utility functions for hashing files.

package utils

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/windowsadmins/msikit/pkg/logging"
)

// HashAlgorithm names a supported checksum algorithm.
type HashAlgorithm string

// Supported algorithms. SHA256 is the default.
const (
	SHA256 HashAlgorithm = "SHA256"
	SHA1   HashAlgorithm = "SHA1"
	SHA384 HashAlgorithm = "SHA384"
	SHA512 HashAlgorithm = "SHA512"
	MD5    HashAlgorithm = "MD5"
)

// ParseHashAlgorithm accepts the algorithm name in any case, with or without a dash.
// An empty name selects SHA256.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "")) {
	case "", "SHA256":
		return SHA256, nil
	case "SHA1":
		return SHA1, nil
	case "SHA384":
		return SHA384, nil
	case "SHA512":
		return SHA512, nil
	case "MD5":
		return MD5, nil
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", name)
	}
}

func (a HashAlgorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", string(a))
	}
}

// FileHash returns the lowercase hex digest of a file.
func FileHash(path string, algo HashAlgorithm) (string, error) {
	h, err := algo.newHash()
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	logging.Debug("Calculated file hash", "path", path, "algorithm", string(algo), "hash", sum)
	return sum, nil
}

// HashEqual compares two hex digests ignoring case and surrounding space.
func HashEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
