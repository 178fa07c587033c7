package ingest

import "context"

// Kind classifies an upload by how its text is obtained.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// TextExtractor turns raw file bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// mimeByExt maps supported image extensions to their media type.
var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}
