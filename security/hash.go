package security

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/docsuite/pdfengine/pdferr"
)

// Hash digests data with the named algorithm and returns lowercase hex.
// Supported algorithms are md5, sha1, sha256 and sha512. The weak digests
// stay available because callers compare against externally produced
// checksums; nothing here feeds key derivation.
func Hash(data []byte, algorithm string) (string, error) {
	switch algorithm {
	case "md5":
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha1":
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha256":
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha512":
		sum := sha512.Sum512(data)
		return hex.EncodeToString(sum[:]), nil
	}
	return "", fmt.Errorf("%w: unknown hash algorithm %q", pdferr.InvalidParameter, algorithm)
}
