package imaging

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/geometry"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

const (
	PaddedPrefix = "padded_"
	JPEGQuality  = 95
)

// Converter implements the geometry operations on image files.
type Converter struct {
	background color.Color
	quality    int
}

func NewConverter() *Converter {
	return &Converter{
		background: color.White,
		quality:    JPEGQuality,
	}
}

func (c *Converter) Describe(path string) (domain.ImageDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("error decoding image header %s: %w", filepath.Base(path), err)
	}

	return domain.ImageDescriptor{Path: path, Width: cfg.Width, Height: cfg.Height}, nil
}

// Pad flattens the source onto the background color and centers it on a canvas at the target ratio.
// The result is written next to the source with PaddedPrefix.
func (c *Converter) Pad(src domain.ImageDescriptor, target domain.Ratio) (domain.ImageDescriptor, error) {
	img, err := imgio.Open(src.Path)
	if err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: error opening %s: %v", domain.ErrAdaptation, src.Path, err)
	}

	bounds := img.Bounds()
	cw, ch := geometry.PadSize(bounds.Dx(), bounds.Dy(), target)
	if cw <= 0 || ch <= 0 {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: unusable size %dx%d", domain.ErrAdaptation, bounds.Dx(), bounds.Dy())
	}

	canvas := imaging.New(cw, ch, c.background)
	placed := geometry.PadRect(bounds.Dx(), bounds.Dy(), target)
	out := imaging.Paste(canvas, c.flatten(img), placed.Min)

	dest := derivedPath(src.Path, PaddedPrefix)
	if err := c.save(dest, out); err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: %v", domain.ErrAdaptation, err)
	}

	log.Debug().
		Str("path", dest).
		Str("ratio", target.Label).
		Int("width", cw).
		Int("height", ch).
		Msg("padded image")

	return domain.ImageDescriptor{Path: dest, Width: cw, Height: ch}, nil
}

// Stretch resamples the source to the target ratio, keeping its height.
func (c *Converter) Stretch(src domain.ImageDescriptor, target domain.Ratio) (domain.ImageDescriptor, error) {
	img, err := imgio.Open(src.Path)
	if err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: error opening %s: %v", domain.ErrAdaptation, src.Path, err)
	}

	bounds := img.Bounds()
	sw, sh := geometry.StretchSize(bounds.Dx(), bounds.Dy(), target)
	if sw <= 0 || sh <= 0 {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: unusable size %dx%d", domain.ErrAdaptation, bounds.Dx(), bounds.Dy())
	}

	out := transform.Resize(c.flatten(img), sw, sh, transform.Lanczos)

	dest := derivedPath(src.Path, fmt.Sprintf("stretched_%d_%d_", target.W, target.H))
	if err := c.save(dest, out); err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: %v", domain.ErrAdaptation, err)
	}

	log.Debug().
		Str("path", dest).
		Str("ratio", target.Label).
		Int("width", sw).
		Int("height", sh).
		Msg("stretched image")

	return domain.ImageDescriptor{Path: dest, Width: sw, Height: sh}, nil
}

// Restore crops the padding bands off the result so it matches the reference ratio again.
// The result file is replaced atomically; a result already at the reference ratio is left untouched.
func (c *Converter) Restore(reference domain.ImageDescriptor, resultPath string) (domain.ImageDescriptor, error) {
	img, err := imgio.Open(resultPath)
	if err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: error opening %s: %v", domain.ErrRestoration, resultPath, err)
	}

	bounds := img.Bounds()
	box, crop := geometry.RestoreBox(reference.Width, reference.Height, bounds.Dx(), bounds.Dy())
	if !crop {
		return domain.ImageDescriptor{Path: resultPath, Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}

	out := transform.Crop(img, box.Add(bounds.Min))
	if err := c.save(resultPath, out); err != nil {
		return domain.ImageDescriptor{}, fmt.Errorf("%w: %v", domain.ErrRestoration, err)
	}

	log.Debug().
		Str("path", resultPath).
		Int("width", box.Dx()).
		Int("height", box.Dy()).
		Msg("restored ratio")

	return domain.ImageDescriptor{Path: resultPath, Width: box.Dx(), Height: box.Dy()}, nil
}

// flatten composites any transparency onto the background so later resampling never mixes in
// undefined color channels.
func (c *Converter) flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), c.background)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// save encodes next to path and renames over it, so readers never observe a partial file.
func (c *Converter) save(path string, img image.Image) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")

	if err := imgio.Save(tmp, img, c.encoder(path)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("error encoding %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("error replacing %s: %w", filepath.Base(path), err)
	}

	return nil
}

func (c *Converter) encoder(path string) imgio.Encoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(c.quality)
	default:
		return imgio.PNGEncoder()
	}
}

// derivedPath places a prefixed sibling of path. WebP has no encoder, so those become PNG.
func derivedPath(path, prefix string) string {
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(name), ".webp") {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
	}

	return filepath.Join(filepath.Dir(path), prefix+name)
}
