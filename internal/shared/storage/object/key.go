package object

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrInvalidFileName is returned for names that are empty or try to escape
// the owner namespace.
var ErrInvalidFileName = errors.New("invalid file name")

// NewKey builds a storage key under the owner's hashed namespace. The random
// prefix keeps repeated uploads of the same file name from colliding.
func NewKey(ownerID, fileName string) (string, error) {
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(OwnerNamespace(ownerID), fmt.Sprintf("%s_%s", uuid.NewString(), name)), nil
}

// OwnerNamespace is the hex SHA-256 of the owner id, so raw ids never appear in keys.
func OwnerNamespace(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:])
}

// SanitizeFileName flattens path separators, drops control characters and
// rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if cleaned == "" {
		return "", ErrInvalidFileName
	}
	return cleaned, nil
}

// NormalizePrefix trims whitespace and surrounding slashes from a bucket prefix.
func NormalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// Prefixed joins a normalized bucket prefix and a storage key.
func Prefixed(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "/" + key
}
