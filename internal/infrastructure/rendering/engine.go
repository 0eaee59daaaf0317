package rendering

import "context"

// PageFormat describes the paper used for document captures
type PageFormat struct {
	Name            string
	WidthMM         float64
	HeightMM        float64
	MarginMM        float64
	Landscape       bool
	PrintBackground bool
}

// PageFormatA4 is the standard 210mm x 297mm portrait page
var PageFormatA4 = PageFormat{
	Name:            "A4",
	WidthMM:         210,
	HeightMM:        297,
	PrintBackground: true,
}

// Engine launches rendering sessions backed by an external process
type Engine interface {
	// Launch starts the engine and returns a session ready to load documents.
	// The caller owns the session and must Close it.
	Launch(ctx context.Context) (Session, error)
}

// Session is one running engine instance with a single page
type Session interface {
	// Load navigates to url and waits until network activity has settled
	Load(ctx context.Context, url string) error
	// CaptureRaster returns a full-page PNG of the loaded document
	CaptureRaster(ctx context.Context) ([]byte, error)
	// CaptureDocument returns the loaded document printed as PDF
	CaptureDocument(ctx context.Context, format PageFormat) ([]byte, error)
	// Close terminates the engine process
	Close() error
}
