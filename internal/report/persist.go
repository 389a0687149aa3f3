package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/raysh454/lumen/internal/fsutil"
	"github.com/raysh454/lumen/internal/logging"
)

// ErrPersistence wraps every failure to store a report. A run whose
// report cannot be stored is a failed run.
var ErrPersistence = errors.New("report persistence failed")

// ReportFile is the aggregate file name inside the artifact directory.
const ReportFile = "report.json"

// Persister stores a finalized report somewhere.
type Persister interface {
	Persist(ctx context.Context, r *Report) error
}

// ThumbnailConfig controls the JPEG previews generated next to screenshots.
type ThumbnailConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Width   int  `mapstructure:"width" yaml:"width"`
	Height  int  `mapstructure:"height" yaml:"height"`
	Quality int  `mapstructure:"quality" yaml:"quality"`
}

func DefaultThumbnailConfig() ThumbnailConfig {
	return ThumbnailConfig{Enabled: true, Width: 320, Height: 240, Quality: 85}
}

// FilePersister writes report.json and one <slug>.json per page into Dir.
type FilePersister struct {
	Dir       string
	Thumbnail ThumbnailConfig
	logger    logging.Logger
}

func NewFilePersister(dir string, thumb ThumbnailConfig, logger logging.Logger) *FilePersister {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FilePersister{
		Dir:       dir,
		Thumbnail: thumb,
		logger:    logger.With(logging.Field{Key: "component", Value: "file_persister"}),
	}
}

// Persist writes the per-page files first and the aggregate last, so a
// report.json on disk always has its page files next to it.
func (p *FilePersister) Persist(ctx context.Context, r *Report) error {
	if r == nil {
		return fmt.Errorf("%w: nil report", ErrPersistence)
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPersistence, p.Dir, err)
	}

	for _, page := range r.Pages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		name := fsutil.Slug(page.Name) + ".json"
		if err := writeJSON(filepath.Join(p.Dir, name), page); err != nil {
			return fmt.Errorf("%w: page %q: %w", ErrPersistence, page.Name, err)
		}
		if page.Screenshot != "" && p.Thumbnail.Enabled {
			if err := p.writeThumbnail(page.Screenshot); err != nil {
				p.logger.Warn("thumbnail skipped",
					logging.Field{Key: "page", Value: page.Name},
					logging.Field{Key: "error", Value: err.Error()})
			}
		}
	}

	if err := writeJSON(filepath.Join(p.Dir, ReportFile), r); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistence, ReportFile, err)
	}
	p.logger.Info("report written",
		logging.Field{Key: "dir", Value: p.Dir},
		logging.Field{Key: "run_id", Value: r.RunID},
		logging.Field{Key: "pages", Value: len(r.Pages)})
	return nil
}

// ThumbnailName maps "home.png" to "home.thumb.jpg".
func ThumbnailName(screenshot string) string {
	ext := filepath.Ext(screenshot)
	return screenshot[:len(screenshot)-len(ext)] + ".thumb.jpg"
}

func (p *FilePersister) writeThumbnail(screenshot string) error {
	f, err := os.Open(filepath.Join(p.Dir, screenshot))
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}

	w, h := p.Thumbnail.Width, p.Thumbnail.Height
	if w <= 0 || h <= 0 {
		d := DefaultThumbnailConfig()
		w, h = d.Width, d.Height
	}
	q := p.Thumbnail.Quality
	if q <= 0 || q > 100 {
		q = DefaultThumbnailConfig().Quality
	}

	thumb := imaging.Fit(img, w, h, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return fsutil.AtomicWriteFile(filepath.Join(p.Dir, ThumbnailName(screenshot)), buf.Bytes(), 0o644)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.AtomicWriteFile(path, append(data, '\n'), 0o644)
}

// ReadFile loads a report.json written by FilePersister.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &r, nil
}

// Chain persists to each persister in order and stops at the first error.
func Chain(ps ...Persister) Persister {
	return chain(ps)
}

type chain []Persister

func (c chain) Persist(ctx context.Context, r *Report) error {
	for _, p := range c {
		if p == nil {
			continue
		}
		if err := p.Persist(ctx, r); err != nil {
			if errors.Is(err, ErrPersistence) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	return nil
}
