package render

import (
	"fmt"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gomonobold"
)

// ParseFont returns the bundled monospaced bold face used for overlays and
// chart labels.
func ParseFont() (*truetype.Font, error) {
	f, err := freetype.ParseFont(gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	return f, nil
}
