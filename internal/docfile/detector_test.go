package docfile

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/local/docextract/internal/testpdf"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectPDF(t *testing.T) {
	path := testpdf.WriteFile(t, []string{"hello"})

	info, err := New().Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Kind != KindPDF {
		t.Fatalf("Kind = %q, want pdf (mime %q)", info.Kind, info.MIMEType)
	}
	if !info.IsSupported() {
		t.Fatal("PDF must be supported")
	}
}

func TestDetectImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	// Extension lies on purpose, detection goes by magic bytes.
	path := writeTempFile(t, "scan.dat", buf.Bytes())

	info, err := New().Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Kind != KindImage {
		t.Fatalf("Kind = %q, want image (mime %q)", info.Kind, info.MIMEType)
	}
}

func TestDetectUnsupported(t *testing.T) {
	path := writeTempFile(t, "notes.txt", []byte("just some plain text notes\n"))

	info, err := New().Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Kind != KindUnsupported {
		t.Fatalf("Kind = %q, want unsupported (mime %q)", info.Kind, info.MIMEType)
	}
	if info.IsSupported() {
		t.Fatal("plain text must not be supported")
	}
}

func TestDetectMissingFile(t *testing.T) {
	if _, err := New().Detect(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
