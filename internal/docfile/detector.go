package docfile

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind classifies a document for the extraction pipeline.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

// FileTypeInfo contains detected file type information.
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Kind        Kind
	Description string
}

// IsSupported reports whether the pipeline can consume the file.
func (i *FileTypeInfo) IsSupported() bool { return i.Kind != KindUnsupported }

// Detector identifies document types using magic bytes, not filenames.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// Detect inspects the file content and classifies it for the pipeline.
// Only PDF and common raster image formats are consumed; anything else is
// reported as unsupported and treated as a fatal input error by callers.
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info)

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).
		Str("kind", string(info.Kind)).Str("file", filePath).Msg("detected file type")

	return info, nil
}

func (d *Detector) classify(info *FileTypeInfo) {
	mimeType := info.MIMEType

	switch {
	case mimeType == "application/pdf":
		info.Kind = KindPDF
		info.Description = "PDF document"

	case strings.HasPrefix(mimeType, "image/"):
		info.Kind = KindImage
		info.Description = "Raster image"

	default:
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Unsupported file type: %s", mimeType)
	}
}
