package sr

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"reconstructd/internal/backend"
	"reconstructd/pkg/types"
)

// defaultTileRows is the number of horizontal bands an input image is split
// into. Each band is upscaled independently, which bounds peak memory and
// gives the caller a cancellation checkpoint per band.
const defaultTileRows = 8

// Engine is a tiled Lanczos super-resolution engine. It satisfies
// backend.Engine; one Session is materialized per loaded model artifact.
type Engine struct {
	// TileRows overrides the band count when > 0.
	TileRows int
}

func New() *Engine { return &Engine{} }

// Load verifies the model artifact and materializes a session for it.
// A missing or empty artifact is a load failure; the manager maps it to
// a backend-unavailable error for callers.
func (e *Engine) Load(b types.Backend, dev backend.Device) (backend.Session, error) {
	fi, err := os.Stat(b.Path)
	if err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", filepath.Base(b.Path), err)
	}
	if fi.IsDir() || fi.Size() == 0 {
		return nil, fmt.Errorf("model artifact %s: empty or not a file", filepath.Base(b.Path))
	}
	scale := b.Scale
	if scale < 1 {
		scale = 1
	}
	rows := e.TileRows
	if rows <= 0 {
		rows = defaultTileRows
	}
	return &session{scale: scale, rows: rows, device: dev}, nil
}

type session struct {
	scale  int
	rows   int
	device backend.Device
}

// Reconstruct upscales inputPath into outputPath (PNG). The image is split
// into horizontal bands; after each band onStep is invoked with the step
// counter and a stage message. A non-nil error from onStep aborts the run
// and is returned unchanged so callers can recognize their own sentinel.
func (s *session) Reconstruct(ctx context.Context, inputPath, outputPath string, onStep backend.StepFunc) error {
	src, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return fmt.Errorf("empty input image")
	}

	rows := s.rows
	if rows > h {
		rows = h
	}
	// steps: one per band, plus the final write
	total := rows + 1
	bandH := h / rows

	dst := image.NewNRGBA(image.Rect(0, 0, w*s.scale, h*s.scale))
	for i := 0; i < rows; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		y0 := bounds.Min.Y + i*bandH
		y1 := y0 + bandH
		if i == rows-1 {
			y1 = bounds.Max.Y
		}
		band := imaging.Crop(src, image.Rect(bounds.Min.X, y0, bounds.Max.X, y1))
		up := imaging.Resize(band, w*s.scale, (y1-y0)*s.scale, imaging.Lanczos)
		target := image.Rect(0, (y0-bounds.Min.Y)*s.scale, w*s.scale, (y1-bounds.Min.Y)*s.scale)
		draw.Draw(dst, target, up, image.Point{}, draw.Src)
		if onStep != nil {
			if err := onStep(i+1, total, fmt.Sprintf("upscaling tile %d/%d", i+1, rows)); err != nil {
				return err
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("mkdir output: %w", err)
	}
	if err := imaging.Save(dst, outputPath); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	if onStep != nil {
		if err := onStep(total, total, "writing output"); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) Close() error { return nil }
