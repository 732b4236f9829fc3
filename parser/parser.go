// Package parser loads PDF files into the editable document model. It
// validates structure up front: a document is either fully parsed, decrypted
// and lifted into semantic form, or an error identifies what failed.
package parser

import (
	"context"
	"fmt"

	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/observability"
	"github.com/docsuite/pdfengine/pdferr"
)

// Options configures a Load.
type Options struct {
	// Password unlocks an encrypted file. Both password slots are tried.
	Password string
	Logger   observability.Logger
	Tracer   observability.Tracer
}

func (o Options) logger() observability.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return observability.NopLogger{}
}

func (o Options) tracer() observability.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return observability.NopTracer()
}

// Load parses data into a semantic document. Encrypted files authenticate
// with Options.Password; an empty password is tried on its own, so files
// with a blank user password open transparently.
func Load(ctx context.Context, data []byte, opts Options) (*semantic.Document, error) {
	ctx, span := opts.tracer().StartSpan(ctx, "pdf.load")
	defer span.Finish()
	_ = ctx

	if len(data) == 0 {
		err := fmt.Errorf("%w: empty input", pdferr.CorruptDocument)
		span.SetError(err)
		return nil, err
	}
	l := newLoader(data, opts.logger())
	if _, err := l.load(opts.Password); err != nil {
		span.SetError(err)
		return nil, err
	}
	doc, err := l.buildSemantic()
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag(observability.MetricPageCount, doc.PageCount())
	if doc.Encryption != nil {
		// Loading succeeded, so the password in hand authenticated; keep it
		// for re-encryption on write.
		doc.Encryption.UserPassword = opts.Password
		doc.Encryption.OwnerPass = opts.Password
	}
	return doc, nil
}

// IsEncrypted reports whether the file carries an Encrypt dictionary,
// without requiring a password.
func IsEncrypted(data []byte) (bool, error) {
	l := newLoader(data, observability.NopLogger{})
	if _, err := l.parseHeader(); err != nil {
		return false, err
	}
	table, _, err := l.loadXRefChain()
	if err != nil {
		return false, err
	}
	_, ok := table.Trailer.Get("Encrypt")
	return ok, nil
}

// CheckPassword verifies a password against an encrypted file without
// building the document. A nil error means the password opens the file.
func CheckPassword(data []byte, password string) error {
	l := newLoader(data, observability.NopLogger{})
	if _, err := l.load(password); err != nil {
		return err
	}
	if !l.handler.IsEncrypted() {
		return fmt.Errorf("%w: password check on plain file", pdferr.InvalidParameter)
	}
	return nil
}
