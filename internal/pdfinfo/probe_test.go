package pdfinfo

import (
	"errors"
	"strings"
	"testing"
)

type fakeDoc struct {
	pages []string
	errAt map[int]error
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }
func (d *fakeDoc) PageText(i int) (string, error) {
	if err, ok := d.errAt[i]; ok {
		return "", err
	}
	return d.pages[i], nil
}
func (d *fakeDoc) Close() error { return nil }

type fakeOpener struct {
	doc *fakeDoc
	err error
}

func (o fakeOpener) Open(path string) (Doc, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

func withOpener(t *testing.T, o Opener) {
	t.Helper()
	prev := defaultOpener
	setDefaultOpener(o)
	t.Cleanup(func() { setDefaultOpener(prev) })
}

func TestHasExtractableTextAboveThreshold(t *testing.T) {
	withOpener(t, fakeOpener{doc: &fakeDoc{
		pages: []string{strings.Repeat("a", 200), strings.Repeat("b", 200)},
	}})

	ok, report, err := HasExtractableText("doc.pdf", 300, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected extractable = true")
	}
	if report.SampleChars < 300 {
		t.Fatalf("SampleChars = %d, want >= 300", report.SampleChars)
	}
}

func TestHasExtractableTextScannedDoc(t *testing.T) {
	withOpener(t, fakeOpener{doc: &fakeDoc{
		pages: []string{"", "  \n\t ", ""},
	}})

	ok, report, err := HasExtractableText("scan.pdf", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected extractable = false for whitespace-only pages")
	}
	if report.Threshold != DefaultThreshold {
		t.Fatalf("Threshold = %d, want default %d", report.Threshold, DefaultThreshold)
	}
}

func TestHasExtractableTextEmptyDoc(t *testing.T) {
	withOpener(t, fakeOpener{doc: &fakeDoc{}})

	ok, report, err := HasExtractableText("empty.pdf", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected extractable = false for zero pages")
	}
	if report.TotalPages != 0 || len(report.Sampled) != 0 {
		t.Fatalf("unexpected report for empty doc: %+v", report)
	}
}

func TestHasExtractableTextExplicitPagesClamped(t *testing.T) {
	withOpener(t, fakeOpener{doc: &fakeDoc{
		pages: []string{strings.Repeat("x", 500), "y", "z"},
	}})

	_, report, err := HasExtractableText("doc.pdf", 100, []int{2, 0, 0, -1, 99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{0, 2}
	if len(report.Sampled) != len(want) {
		t.Fatalf("Sampled = %v, want %v", report.Sampled, want)
	}
	for i, p := range want {
		if report.Sampled[i] != p {
			t.Fatalf("Sampled = %v, want %v", report.Sampled, want)
		}
	}
}

func TestHasExtractableTextPageErrorRecorded(t *testing.T) {
	withOpener(t, fakeOpener{doc: &fakeDoc{
		pages: []string{"", ""},
		errAt: map[int]error{0: errors.New("damaged page")},
	}})

	ok, report, err := HasExtractableText("doc.pdf", 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected extractable = false")
	}
	if report.Samples[0].Err == "" {
		t.Fatal("expected page error to be recorded in sample")
	}
}

func TestSampleIndicesSmallDoc(t *testing.T) {
	got := sampleIndices(3)
	if len(got) != 3 {
		t.Fatalf("sampleIndices(3) = %v, want all 3 pages", got)
	}
	for i, p := range got {
		if p != i {
			t.Fatalf("sampleIndices(3) = %v, want [0 1 2]", got)
		}
	}
}

func TestSampleIndicesLargeDoc(t *testing.T) {
	got := sampleIndices(100)
	if len(got) != 5 {
		t.Fatalf("sampleIndices(100) returned %d indices, want 5", len(got))
	}
	has := map[int]bool{}
	for i, p := range got {
		if p < 0 || p >= 100 {
			t.Fatalf("index %d out of range", p)
		}
		if i > 0 && got[i-1] >= p {
			t.Fatalf("indices not strictly ascending: %v", got)
		}
		has[p] = true
	}
	for _, must := range []int{0, 50, 99} {
		if !has[must] {
			t.Fatalf("sampleIndices(100) = %v, missing %d", got, must)
		}
	}
}
