package ocr

import "testing"

func TestInputOptions(t *testing.T) {
	var in Input
	WithLanguages("eng", "deu")(&in)
	if len(in.Languages) != 2 {
		t.Fatalf("languages %v", in.Languages)
	}
	WithDPI(300)(&in)
	if in.DPI != 300 {
		t.Fatalf("dpi %d", in.DPI)
	}
	WithMetadata(map[string]string{"psm": "6"})(&in)
	if in.Metadata["psm"] != "6" {
		t.Fatalf("metadata %v", in.Metadata)
	}
	WithMetadata(nil)(&in)
	if in.Metadata != nil {
		t.Fatal("empty metadata should clear the map")
	}
}

func TestWithRegion(t *testing.T) {
	var in Input
	WithRegion(Region{X: 1, Y: 2, Width: 3, Height: 4})(&in)
	if in.Region == nil || in.Region.Width != 3 {
		t.Fatalf("region %+v", in.Region)
	}
	WithRegion(Region{})(&in)
	if in.Region != nil {
		t.Fatal("empty region should clear the restriction")
	}
}

func TestRegionIsEmpty(t *testing.T) {
	if (Region{Width: 1, Height: 1}).IsEmpty() {
		t.Fatal("positive region reported empty")
	}
	if !(Region{Width: 0, Height: 5}).IsEmpty() {
		t.Fatal("zero-width region reported non-empty")
	}
}
