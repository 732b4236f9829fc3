package editor

import (
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
)

// Report summarizes a document for display and auditing.
type Report struct {
	PageCount       int
	Version         string
	Encrypted       bool
	FontCount       int
	ImageCount      int
	AnnotationCount int
	Metadata        map[string]string
	// PageSizes lists the media box of each page in points, width x height.
	PageSizes []semantic.Rectangle
}

// Inspect gathers a summary report. It never mutates the document.
func Inspect(doc *semantic.Document) *Report {
	report := &Report{
		PageCount: doc.PageCount(),
		Version:   doc.Version,
		Encrypted: doc.Encryption != nil,
		Metadata:  make(map[string]string),
	}
	if doc.Info.Title != "" {
		report.Metadata["Title"] = doc.Info.Title
	}
	if doc.Info.Author != "" {
		report.Metadata["Author"] = doc.Info.Author
	}
	if doc.Info.Subject != "" {
		report.Metadata["Subject"] = doc.Info.Subject
	}
	if doc.Info.Producer != "" {
		report.Metadata["Producer"] = doc.Info.Producer
	}
	if doc.Info.CreationDate != "" {
		report.Metadata["CreationDate"] = doc.Info.CreationDate
	}

	for _, page := range doc.Pages {
		report.PageSizes = append(report.PageSizes, page.MediaBox)
		report.AnnotationCount += len(page.Annotations)
		if page.Resources == nil {
			continue
		}
		report.FontCount += len(page.Resources.Fonts)
		for _, xo := range page.Resources.XObjects {
			if stream, ok := xo.(*raw.StreamObj); ok {
				if sub, _ := raw.DictGetName(stream.Dict, "Subtype"); sub == "Image" {
					report.ImageCount++
				}
			}
		}
	}
	return report
}
