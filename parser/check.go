package parser

import (
	"context"
	"errors"

	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// SecurityReport is the result of probing a file's encryption status.
// Permissions and Metadata are nil unless the probe authenticated; a nil
// field means "not available", which callers must not conflate with an
// all-false permission set.
type SecurityReport struct {
	IsEncrypted     bool
	NeedsPassword   bool
	IsAuthenticated bool
	Permissions     *raw.Permissions
	Metadata        *semantic.DocumentInfo
}

// CheckSecurity probes data without committing to a full mutation session.
// It never fails just because the password is missing or wrong; those cases
// come back as an unauthenticated report. Parse failures still error.
func CheckSecurity(ctx context.Context, data []byte, password string) (SecurityReport, error) {
	encrypted, err := IsEncrypted(data)
	if err != nil {
		return SecurityReport{}, err
	}
	if !encrypted {
		doc, err := Load(ctx, data, Options{})
		if err != nil {
			return SecurityReport{}, err
		}
		info := doc.Info
		return SecurityReport{IsAuthenticated: true, Metadata: &info}, nil
	}

	report := SecurityReport{IsEncrypted: true}
	doc, err := Load(ctx, data, Options{Password: password})
	switch {
	case err == nil:
		report.IsAuthenticated = true
		if doc.Encryption != nil {
			perms := doc.Encryption.Permissions
			report.Permissions = &perms
		}
		info := doc.Info
		report.Metadata = &info
		return report, nil
	case errors.Is(err, pdferr.EncryptedWithoutPassword), errors.Is(err, pdferr.IncorrectPassword):
		report.NeedsPassword = true
		return report, nil
	default:
		return SecurityReport{}, err
	}
}
