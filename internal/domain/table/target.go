package table

import "fmt"

// RenderTarget represents the kind of artifact produced from a table
type RenderTarget string

const (
	// RenderTargetRaster is a full-page PNG screenshot
	RenderTargetRaster RenderTarget = "raster"
	// RenderTargetDocument is an A4 paginated PDF
	RenderTargetDocument RenderTarget = "document"
)

// IsValid checks if the RenderTarget is a valid value
func (t RenderTarget) IsValid() bool {
	switch t {
	case RenderTargetRaster, RenderTargetDocument:
		return true
	}
	return false
}

// String returns the string representation of RenderTarget
func (t RenderTarget) String() string {
	return string(t)
}

// OrDefault returns the raster target for the zero value
func (t RenderTarget) OrDefault() RenderTarget {
	if t == "" {
		return RenderTargetRaster
	}
	return t
}

// Extension returns the artifact file extension, without the dot
func (t RenderTarget) Extension() string {
	switch t {
	case RenderTargetDocument:
		return "pdf"
	default:
		return "png"
	}
}

// ContentType returns the MIME type of the artifact
func (t RenderTarget) ContentType() string {
	switch t {
	case RenderTargetDocument:
		return "application/pdf"
	default:
		return "image/png"
	}
}

// AllRenderTargets returns all valid RenderTarget values
func AllRenderTargets() []RenderTarget {
	return []RenderTarget{RenderTargetRaster, RenderTargetDocument}
}

// ParseRenderTarget converts a target name or file extension to a RenderTarget.
// The empty string maps to the raster target.
func ParseRenderTarget(s string) (RenderTarget, error) {
	switch s {
	case "", "raster", "png", "image":
		return RenderTargetRaster, nil
	case "document", "pdf":
		return RenderTargetDocument, nil
	}
	return "", fmt.Errorf("unknown render target: %q", s)
}
