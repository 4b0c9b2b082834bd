package imaging

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultMaxSize bounds both sides of a prepared image.
const DefaultMaxSize = 1024

// ResizedSuffix is inserted before the extension of a prepared copy.
const ResizedSuffix = "_resized"

var (
	// ErrUnsupportedFormat is returned for files without a PNG or JPEG
	// extension.
	ErrUnsupportedFormat = errors.New("unsupported file type, expected png, jpg or jpeg")

	// ErrInvalidImage is returned when an allowed file does not decode.
	ErrInvalidImage = errors.New("file is not a valid image")
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Allowed reports whether path has an accepted image extension. The check is
// case-insensitive.
func Allowed(path string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Prepared describes the copy written by Prepare.
type Prepared struct {
	Path           string `json:"path"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
	Resized        bool   `json:"resized"`
}

// PreparedPath returns where Prepare writes the copy of path:
// "shelf.jpg" becomes "shelf_resized.jpg" in the same directory.
func PreparedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ResizedSuffix + ext
}

// Prepare validates the image at path and writes a copy that fits within
// maxSize×maxSize, keeping the aspect ratio. Images already inside the bound
// are copied unchanged; they are never enlarged. maxSize <= 0 means
// DefaultMaxSize.
//
// The source file is left untouched.
func Prepare(path string, maxSize int) (*Prepared, error) {
	if !Allowed(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrInvalidImage, err)
	}

	b := src.Bounds()
	dst := imaging.Fit(src, maxSize, maxSize, imaging.Lanczos)
	out := PreparedPath(path)
	if err := imaging.Save(dst, out); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", out, err)
	}

	db := dst.Bounds()
	return &Prepared{
		Path:           out,
		Width:          db.Dx(),
		Height:         db.Dy(),
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
		Resized:        db.Dx() != b.Dx() || db.Dy() != b.Dy(),
	}, nil
}
