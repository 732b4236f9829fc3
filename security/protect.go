package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// ProtectOptions selects the cipher, passwords and permission set applied by
// Protect. Zero-value Permissions denies everything; use
// raw.AllPermissions() to grant everything.
type ProtectOptions struct {
	UserPassword  string
	OwnerPassword string
	Method        semantic.EncryptionMethod
	Permissions   raw.Permissions
}

// Protect marks the document for encryption on the next serialization. The
// method defaults to AES-256; an empty owner password falls back to the user
// password. A document can be re-protected with different parameters, which
// replaces the previous state.
func Protect(doc *semantic.Document, opts ProtectOptions) error {
	if opts.UserPassword == "" && opts.OwnerPassword == "" {
		return fmt.Errorf("%w: protection requires at least one password", pdferr.InvalidParameter)
	}
	method := opts.Method
	if method == "" {
		method = semantic.EncryptAES256
	} else {
		var err error
		if method, err = semantic.ParseEncryptionMethod(string(method)); err != nil {
			return fmt.Errorf("%w: %v", pdferr.InvalidParameter, err)
		}
	}
	owner := opts.OwnerPassword
	if owner == "" {
		owner = opts.UserPassword
	}
	doc.Encryption = &semantic.EncryptionState{
		Method:       method,
		Permissions:  opts.Permissions,
		UserPassword: opts.UserPassword,
		OwnerPass:    owner,
	}
	doc.Dirty = true
	return nil
}

// Unprotect strips the encryption state so the next serialization writes the
// document in the clear. The document must already be open, which means the
// password was verified at load time; calling it on an unencrypted document
// is a no-op.
func Unprotect(doc *semantic.Document) {
	if doc.Encryption == nil {
		return
	}
	doc.Encryption = nil
	doc.Dirty = true
}

// IsProtected reports whether the document carries encryption state.
func IsProtected(doc *semantic.Document) bool { return doc.Encryption != nil }

// HashPassword returns a stable hex digest of a password for audit records.
// It is never used for key derivation.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
