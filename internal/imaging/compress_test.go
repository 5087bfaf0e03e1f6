package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func noiseImage(width, height int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func flatImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 90, B: 200, A: 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, img image.Image, quality int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return path
}

func encodedSize(t *testing.T, img image.Image, quality int) int64 {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode probe: %v", err)
	}
	return int64(buf.Len())
}

func TestCompress_FitsOnFirstPass(t *testing.T) {
	path := writeJPEG(t, flatImage(64, 64), 90)
	c := &Compressor{Budget: 1 << 20, TempDir: t.TempDir()}

	res, err := c.Compress(path)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if res.Quality != QualityStart || res.Passes != 1 {
		t.Errorf("quality = %d, passes = %d; want first-pass success", res.Quality, res.Passes)
	}
	if res.Size > c.Budget {
		t.Errorf("size %d exceeds budget %d", res.Size, c.Budget)
	}
	info, err := os.Stat(res.Path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != res.Size {
		t.Errorf("reported size %d, file size %d", res.Size, info.Size())
	}
}

func TestCompress_DescendsQuality(t *testing.T) {
	path := writeJPEG(t, noiseImage(256, 256), 100)

	// Probe with the decoded source so the sizes match the compressor's own
	// passes byte for byte.
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	// A budget below the first pass forces the descent; the floor pass is
	// guaranteed to fit because the budget equals its exact output size.
	first := encodedSize(t, img, QualityStart)
	floor := encodedSize(t, img, QualityFloor)
	if floor >= first {
		t.Skipf("noise image did not shrink between quality %d and %d", QualityStart, QualityFloor)
	}

	c := &Compressor{Budget: floor, TempDir: t.TempDir()}
	res, err := c.Compress(path)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if res.Quality >= QualityStart {
		t.Errorf("quality = %d, expected a descent below %d", res.Quality, QualityStart)
	}
	if res.Size > c.Budget {
		t.Errorf("size %d exceeds budget %d", res.Size, c.Budget)
	}
	if want := QualityStart - QualityStep*(res.Passes-1); res.Quality != want {
		t.Errorf("quality %d inconsistent with %d passes", res.Quality, res.Passes)
	}
}

func TestCompress_QualityFloorFailure(t *testing.T) {
	path := writeJPEG(t, noiseImage(128, 128), 90)
	// No JPEG fits in 10 bytes.
	c := &Compressor{Budget: 10, TempDir: t.TempDir()}

	_, err := c.Compress(path)
	if !errors.Is(err, ErrQualityFloor) {
		t.Fatalf("err = %v, want ErrQualityFloor", err)
	}
}

func TestCompress_GIFRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.gif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	if err := gif.Encode(f, flatImage(16, 16), nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	f.Close()

	c := &Compressor{Budget: 1 << 20, TempDir: t.TempDir()}
	if _, err := c.Compress(path); !errors.Is(err, ErrGIFUnsupported) {
		t.Fatalf("err = %v, want ErrGIFUnsupported", err)
	}
}

func TestCompress_NonImageRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("definitely not pixels"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c := &Compressor{Budget: 1 << 20, TempDir: t.TempDir()}
	if _, err := c.Compress(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestCompress_MissingFile(t *testing.T) {
	c := &Compressor{Budget: 1 << 20, TempDir: t.TempDir()}
	if _, err := c.Compress(filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCompress_AcceptsPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	if err := png.Encode(f, flatImage(32, 32)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	f.Close()

	c := &Compressor{Budget: 1 << 20, TempDir: t.TempDir()}
	res, err := c.Compress(path)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if filepath.Ext(res.Path) != ".jpg" {
		t.Errorf("output %s, want a .jpg re-encode", res.Path)
	}
}

func TestCompress_ClampsOversizedEdge(t *testing.T) {
	path := writeJPEG(t, flatImage(maxEdgePx+600, 200), 90)
	c := &Compressor{Budget: 1 << 20, TempDir: t.TempDir()}

	res, err := c.Compress(path)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	out, err := os.Open(res.Path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer out.Close()
	cfg, _, err := image.DecodeConfig(out)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width > maxEdgePx || cfg.Height > maxEdgePx {
		t.Errorf("output %dx%d exceeds the edge clamp", cfg.Width, cfg.Height)
	}
}
