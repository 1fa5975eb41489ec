package normalizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/food-analyzer/pkg/types"
)

// PreviewQuality matches the quality browsers use for canvas data URIs.
const PreviewQuality = 92

// Config holds the fixed normalisation parameters
type Config struct {
	MaxWidth  int
	Quality   int
	MediaType string
}

// DefaultConfig returns the parameters used by the web client
func DefaultConfig() Config {
	return Config{
		MaxWidth:  1024,
		Quality:   90,
		MediaType: "image/jpeg",
	}
}

// Validate checks that the configuration can produce artifacts
func (c Config) Validate() error {
	if c.MaxWidth < 1 {
		return fmt.Errorf("max width must be positive, got %d", c.MaxWidth)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	if !SupportedOutput(c.MediaType) {
		return fmt.Errorf("%w: %s", types.ErrUnsupportedMediaType, c.MediaType)
	}
	return nil
}

// Normalizer decodes user images and re-encodes them at a bounded width
type Normalizer struct {
	config Config
	log    *zap.Logger
}

// New creates a Normalizer. A nil logger disables logging.
func New(config Config, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{config: config, log: log}
}

// Config returns the normaliser parameters
func (n *Normalizer) Config() Config {
	return n.config
}

// Surface is a decoded image drawn at its output dimensions, ready to encode.
type Surface struct {
	Name         string
	Image        *image.NRGBA
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	Preview      string
}

// Normalize runs Render and Encode using the configured output media type.
func (n *Normalizer) Normalize(ctx context.Context, src types.SourceImage, maxWidth, quality int) (*types.NormalizedArtifact, error) {
	surface, err := n.Render(ctx, src, maxWidth)
	if err != nil {
		return nil, err
	}
	return n.Encode(ctx, surface, quality)
}

// Render decodes src and draws it onto an off-screen surface no wider than
// maxWidth. Images already within bounds keep their dimensions.
func (n *Normalizer) Render(ctx context.Context, src types.SourceImage, maxWidth int) (*Surface, error) {
	if !src.IsImage() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidInputType, src.MediaType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := Decode(src.Data)
	if err != nil {
		n.log.Warn("decode failed", zap.String("name", src.Name), zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	w, h := TargetSize(srcW, srcH, maxWidth)

	var canvas *image.NRGBA
	if w == srcW && h == srcH {
		canvas = imaging.Clone(img)
	} else {
		canvas = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := EncodeImage(&buf, canvas, n.config.MediaType, PreviewQuality); err != nil {
		return nil, err
	}

	n.log.Debug("image rendered",
		zap.String("name", src.Name),
		zap.Int("source_width", srcW),
		zap.Int("source_height", srcH),
		zap.Int("width", w),
		zap.Int("height", h))

	return &Surface{
		Name:         src.Name,
		Image:        canvas,
		Width:        w,
		Height:       h,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		Preview:      types.DataURI(n.config.MediaType, buf.Bytes()),
	}, nil
}

// Encode re-encodes a rendered surface as the configured media type.
func (n *Normalizer) Encode(ctx context.Context, s *Surface, quality int) (*types.NormalizedArtifact, error) {
	if s == nil || s.Image == nil {
		return nil, fmt.Errorf("%w: nothing rendered", types.ErrDecode)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := EncodeImage(&buf, s.Image, n.config.MediaType, quality); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.log.Debug("image encoded",
		zap.String("name", s.Name),
		zap.String("media_type", n.config.MediaType),
		zap.Int("quality", quality),
		zap.Int("size", buf.Len()))

	return &types.NormalizedArtifact{
		ID:        uuid.NewString(),
		Filename:  OutputFilename(s.Name, n.config.MediaType),
		MediaType: n.config.MediaType,
		Width:     s.Width,
		Height:    s.Height,
		Quality:   quality,
		Data:      buf.Bytes(),
	}, nil
}

// TargetSize bounds the width to maxWidth and scales the height to keep the
// aspect ratio. It never upscales.
func TargetSize(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	scale := float64(maxWidth) / float64(width)
	h := int(math.Round(float64(height) * scale))
	if h < 1 {
		h = 1
	}
	return maxWidth, h
}

// Decode decodes image bytes, honouring EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", types.ErrDecode)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}

	return nil, fmt.Errorf("%w: %v", types.ErrDecode, err)
}

// EncodeImage writes img in the given media type
func EncodeImage(w io.Writer, img image.Image, mediaType string, quality int) error {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "image/png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case "image/webp":
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		return fmt.Errorf("%w: %s", types.ErrUnsupportedMediaType, mediaType)
	}
}

// SupportedOutput reports whether mediaType can be produced by EncodeImage
func SupportedOutput(mediaType string) bool {
	return extension(mediaType) != ""
}

// OutputFilename swaps the extension of name for one matching mediaType.
func OutputFilename(name, mediaType string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = uuid.NewString()
	}
	return base + "." + extension(mediaType)
}

func extension(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	}
	return ""
}
