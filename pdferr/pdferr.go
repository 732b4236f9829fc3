// Package pdferr defines the error kinds shared by all engine components.
//
// Every kind is a sentinel matched with errors.Is; components wrap them with
// fmt.Errorf("context: %w", ...) so callers can branch on the kind while the
// message keeps the parse/mutation context.
package pdferr

import "errors"

var (
	// CorruptDocument marks a structural parse failure: bad trailer, dangling
	// reference, truncated stream. Fatal; a document is never returned
	// partially parsed.
	CorruptDocument = errors.New("corrupt document")

	// EncryptedWithoutPassword is returned by Load when the file requires a
	// password and none was supplied.
	EncryptedWithoutPassword = errors.New("document is encrypted and requires a password")

	// IncorrectPassword is returned when neither the user nor the owner
	// password slot authenticates.
	IncorrectPassword = errors.New("incorrect password")

	// UnsupportedVersion marks a PDF header version outside the supported
	// range.
	UnsupportedVersion = errors.New("unsupported PDF version")

	// PageIndexOutOfRange marks any page reference outside the document.
	// Indices are never clamped.
	PageIndexOutOfRange = errors.New("page index out of range")

	// InvalidParameter marks degenerate geometry, unknown permission or
	// encryption method names, non-positive font sizes and similar caller
	// errors.
	InvalidParameter = errors.New("invalid parameter")

	// UnsupportedFormat marks an unrecognized MIME type or extension at a
	// conversion boundary.
	UnsupportedFormat = errors.New("unsupported format")

	// ResourceCollision marks a post-remap resource name clash during merge.
	// It indicates a bug in the remapping logic and exists as a distinct kind
	// for test assertions.
	ResourceCollision = errors.New("resource name collision after remap")
)
