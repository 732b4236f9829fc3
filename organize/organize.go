// Package organize applies structural mutations to the page list: merge,
// split, rearrange, extract, rotate and delete. Content stays untouched;
// only page order, ownership and rotation change.
//
// Page numbers in this package are 1-based, matching the user-facing page
// operations. The editor's page indices are 0-based; the difference is the
// boundary this package sits on.
package organize

import (
	"fmt"

	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

func checkPageNumber(doc *semantic.Document, num int) error {
	if num < 1 || num > doc.PageCount() {
		return fmt.Errorf("%w: page %d of %d", pdferr.PageIndexOutOfRange, num, doc.PageCount())
	}
	return nil
}

// Merge concatenates the page sequences of the given documents in order into
// a fresh document. Every page is imported with deep-copied resources and
// remapped resource names, so mutations of the result never leak into a
// source document and name collisions cannot occur.
//
// Document metadata comes from the first input; an empty input fails.
func Merge(docs []*semantic.Document) (*semantic.Document, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: merge of zero documents", pdferr.InvalidParameter)
	}
	out := &semantic.Document{
		Info:    docs[0].Info,
		Version: docs[0].Version,
		Dirty:   true,
	}
	for i, doc := range docs {
		for j, page := range doc.Pages {
			imported, err := importPage(page)
			if err != nil {
				return nil, fmt.Errorf("merge document %d page %d: %w", i+1, j+1, err)
			}
			out.Pages = append(out.Pages, imported)
		}
	}
	return out, nil
}

// SplitStrategy selects how Split partitions a document. The three
// strategies form a closed set.
type SplitStrategy interface {
	partition(pageCount int) ([][]int, error)
}

// ByExplicitPages produces one single-page document per listed page number.
type ByExplicitPages []int

func (s ByExplicitPages) partition(pageCount int) ([][]int, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: no pages listed", pdferr.InvalidParameter)
	}
	var parts [][]int
	for _, num := range s {
		if num < 1 || num > pageCount {
			return nil, fmt.Errorf("%w: page %d of %d", pdferr.PageIndexOutOfRange, num, pageCount)
		}
		parts = append(parts, []int{num})
	}
	return parts, nil
}

// PageRange is an inclusive 1-based page range.
type PageRange struct {
	Start, End int
}

// ByRanges produces one document per range, inclusive on both ends.
type ByRanges []PageRange

func (s ByRanges) partition(pageCount int) ([][]int, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: no ranges listed", pdferr.InvalidParameter)
	}
	var parts [][]int
	for _, r := range s {
		if r.Start < 1 || r.End > pageCount || r.Start > r.End {
			return nil, fmt.Errorf("%w: range %d-%d of %d pages", pdferr.PageIndexOutOfRange, r.Start, r.End, pageCount)
		}
		var part []int
		for num := r.Start; num <= r.End; num++ {
			part = append(part, num)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// ByEqualParts partitions sequentially into chunks of the given page count;
// the final chunk may be shorter.
type ByEqualParts int

func (s ByEqualParts) partition(pageCount int) ([][]int, error) {
	size := int(s)
	if size < 1 {
		return nil, fmt.Errorf("%w: chunk size %d", pdferr.InvalidParameter, size)
	}
	var parts [][]int
	for start := 1; start <= pageCount; start += size {
		end := start + size - 1
		if end > pageCount {
			end = pageCount
		}
		var part []int
		for num := start; num <= end; num++ {
			part = append(part, num)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// Split partitions the document into new documents per the strategy. Out of
// range bounds fail; they are never clamped. The input is not modified.
func Split(doc *semantic.Document, strategy SplitStrategy) ([]*semantic.Document, error) {
	parts, err := strategy.partition(doc.PageCount())
	if err != nil {
		return nil, err
	}
	out := make([]*semantic.Document, 0, len(parts))
	for _, part := range parts {
		sub := &semantic.Document{
			Info:    doc.Info,
			Version: doc.Version,
			Dirty:   true,
		}
		for _, num := range part {
			imported, err := importPage(doc.Pages[num-1])
			if err != nil {
				return nil, fmt.Errorf("split page %d: %w", num, err)
			}
			sub.Pages = append(sub.Pages, imported)
		}
		out = append(out, sub)
	}
	return out, nil
}

// Rearrange replaces the page order with newOrder (1-based). Duplicates are
// permitted and produce independent page copies, so reordering doubles as a
// copy operation. The output page count is len(newOrder).
func Rearrange(doc *semantic.Document, newOrder []int) error {
	if len(newOrder) == 0 {
		return fmt.Errorf("%w: empty page order", pdferr.InvalidParameter)
	}
	for _, num := range newOrder {
		if err := checkPageNumber(doc, num); err != nil {
			return err
		}
	}
	seen := make(map[int]bool, len(newOrder))
	pages := make([]*semantic.Page, 0, len(newOrder))
	for _, num := range newOrder {
		page := doc.Pages[num-1]
		if seen[num] {
			page = page.Clone()
		}
		seen[num] = true
		pages = append(pages, page)
	}
	doc.Pages = pages
	doc.Dirty = true
	return nil
}

// Extract returns a new document holding exactly the listed pages (1-based)
// in listed order. The input is not modified.
func Extract(doc *semantic.Document, pageNumbers []int) (*semantic.Document, error) {
	if len(pageNumbers) == 0 {
		return nil, fmt.Errorf("%w: no pages listed", pdferr.InvalidParameter)
	}
	out := &semantic.Document{
		Info:    doc.Info,
		Version: doc.Version,
		Dirty:   true,
	}
	for _, num := range pageNumbers {
		if err := checkPageNumber(doc, num); err != nil {
			return nil, err
		}
		imported, err := importPage(doc.Pages[num-1])
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", num, err)
		}
		out.Pages = append(out.Pages, imported)
	}
	return out, nil
}

// Rotate adds angleDegrees to the rotation of the selected pages (all pages
// when pageNumbers is empty), normalized mod 360. The angle must be one of
// 90, 180, 270 or -90.
func Rotate(doc *semantic.Document, angleDegrees int, pageNumbers []int) error {
	switch angleDegrees {
	case 90, 180, 270, -90:
	default:
		return fmt.Errorf("%w: rotation %d degrees", pdferr.InvalidParameter, angleDegrees)
	}
	if len(pageNumbers) == 0 {
		pageNumbers = make([]int, doc.PageCount())
		for i := range pageNumbers {
			pageNumbers[i] = i + 1
		}
	}
	for _, num := range pageNumbers {
		if err := checkPageNumber(doc, num); err != nil {
			return err
		}
	}
	for _, num := range pageNumbers {
		doc.Pages[num-1].SetRotation(angleDegrees)
	}
	doc.Dirty = true
	return nil
}

// RemovePages deletes the listed pages (1-based). Deletion runs highest
// index first so earlier removals cannot shift later ones. Removing every
// page is rejected: a PDF needs at least one page.
func RemovePages(doc *semantic.Document, pageNumbers []int) error {
	if len(pageNumbers) == 0 {
		return fmt.Errorf("%w: no pages listed", pdferr.InvalidParameter)
	}
	unique := make(map[int]bool, len(pageNumbers))
	for _, num := range pageNumbers {
		if err := checkPageNumber(doc, num); err != nil {
			return err
		}
		unique[num] = true
	}
	if len(unique) >= doc.PageCount() {
		return fmt.Errorf("%w: removing all %d pages", pdferr.InvalidParameter, doc.PageCount())
	}
	for num := doc.PageCount(); num >= 1; num-- {
		if unique[num] {
			doc.Pages = append(doc.Pages[:num-1], doc.Pages[num:]...)
		}
	}
	doc.Dirty = true
	return nil
}
