package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

// Quality descent parameters: start high, step down, give up at the floor.
const (
	QualityStart = 90
	QualityStep  = 10
	QualityFloor = 30

	// maxEdgePx clamps pathological dimensions before the quality descent;
	// beyond this edge length no quality level will land under a sane budget.
	maxEdgePx = 4096
)

var (
	// ErrGIFUnsupported rejects animated/indexed GIF sources outright;
	// re-encoding them as JPEG would silently drop frames.
	ErrGIFUnsupported = errors.New("gif compression is not supported")
	// ErrUnsupportedFormat rejects anything that is not JPEG or PNG.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrQualityFloor means no quality level at or above the floor fits the
	// budget; the user must pick a smaller image.
	ErrQualityFloor = errors.New("image cannot be compressed under the budget")
)

// Result describes a successful compression pass.
type Result struct {
	Path    string
	Size    int64
	Quality int
	Passes  int
}

// Compressor re-encodes JPEG/PNG sources to fit a byte budget.
type Compressor struct {
	Budget  int64
	TempDir string // defaults to os.TempDir()
	Log     *zerolog.Logger
}

// Compress re-encodes the source at decreasing JPEG quality, re-measuring
// after each pass, until the output fits the budget or the quality floor is
// reached. The output lands in a fresh temp file; the source is untouched.
func (c *Compressor) Compress(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	switch format {
	case "jpeg", "png":
	case "gif":
		return nil, ErrGIFUnsupported
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	img = clampEdge(img)

	var buf bytes.Buffer
	passes := 0
	for quality := QualityStart; quality >= QualityFloor; quality -= QualityStep {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode at quality %d: %w", quality, err)
		}
		passes++
		if c.Log != nil {
			c.Log.Debug().Int("quality", quality).Int("bytes", buf.Len()).Msg("compression pass")
		}
		if int64(buf.Len()) <= c.Budget {
			out, err := c.writeTemp(buf.Bytes())
			if err != nil {
				return nil, err
			}
			return &Result{Path: out, Size: int64(buf.Len()), Quality: quality, Passes: passes}, nil
		}
	}
	return nil, ErrQualityFloor
}

func (c *Compressor) writeTemp(data []byte) (string, error) {
	dir := c.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "compressed_"+uuid.NewString()+".jpg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write compressed image: %w", err)
	}
	return path, nil
}

func clampEdge(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxEdgePx && height <= maxEdgePx {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxEdgePx
		newHeight = height * maxEdgePx / width
	} else {
		newHeight = maxEdgePx
		newWidth = width * maxEdgePx / height
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
