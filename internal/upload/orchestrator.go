package upload

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/driftchat/driftchat-client/internal/api"
	"github.com/driftchat/driftchat-client/internal/imaging"
)

// DefaultBudget is the server's upload size limit in bytes.
const DefaultBudget = 512000

// ErrNoImage means the chosen file does not exist.
var ErrNoImage = errors.New("image file not found")

// Uploader covers the side-channel upload call.
type Uploader interface {
	UploadImage(ctx context.Context, clientID, path string) (*api.ImageUploadResponse, error)
}

// Compressor covers the size-reduction step.
type Compressor interface {
	Compress(path string) (*imaging.Result, error)
}

// Orchestrator runs the pick-check-compress-upload flow for one image:
// a file over budget gets exactly one compression round (with the user's
// consent), then either fits or is rejected.
type Orchestrator struct {
	Budget     int64
	Client     Uploader
	Compressor Compressor
	// Notify surfaces progress as system lines in the conversation view.
	Notify func(string)
	// AcceptCompression asks the user whether to compress an oversized image.
	// Nil means always accept.
	AcceptCompression func(size int64) bool
	Log               *zerolog.Logger
}

// Send uploads the image at path on behalf of clientID, compressing it first
// if it exceeds the budget. One compression round only; a failed upload is
// reported, never retried.
func (o *Orchestrator) Send(ctx context.Context, clientID, path string) error {
	return o.send(ctx, clientID, path, 0)
}

func (o *Orchestrator) send(ctx context.Context, clientID, path string, depth int) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoImage, path)
	}

	budget := o.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	if info.Size() > budget {
		if depth >= 1 {
			// Compressed output still over budget; the compressor should have
			// failed instead, but never loop.
			return fmt.Errorf("image still exceeds %d bytes after compression", budget)
		}
		if o.AcceptCompression != nil && !o.AcceptCompression(info.Size()) {
			o.notify("Upload cancelled.")
			return nil
		}
		o.notify("Image is too large; compressing...")
		res, err := o.Compressor.Compress(path)
		if err != nil {
			o.notify("Could not compress the image: " + err.Error())
			return err
		}
		o.Log.Info().
			Int64("bytes", res.Size).
			Int("quality", res.Quality).
			Int("passes", res.Passes).
			Msg("image compressed")
		return o.send(ctx, clientID, res.Path, depth+1)
	}

	o.notify("Uploading image...")
	if _, err := o.Client.UploadImage(ctx, clientID, path); err != nil {
		o.notify("Image upload failed: " + err.Error())
		return err
	}
	o.notify("Image sent.")
	return nil
}

func (o *Orchestrator) notify(line string) {
	if o.Notify != nil {
		o.Notify(line)
	}
}
