package normalizer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/menta2k/food-analyzer/pkg/types"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func jpegSource(t testing.TB, width, height int) types.SourceImage {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, createTestImage(width, height), &jpeg.Options{Quality: 95}))
	return types.SourceImage{Name: "meal.jpg", MediaType: "image/jpeg", Data: buf.Bytes()}
}

func pngSource(t testing.TB, width, height int) types.SourceImage {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(width, height)))
	return types.SourceImage{Name: "meal.png", MediaType: "image/png", Data: buf.Bytes()}
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg, format
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"wide landscape", 2000, 1000, 1024, 1024, 512},
		{"exact limit", 1024, 768, 1024, 1024, 768},
		{"smaller", 640, 480, 1024, 640, 480},
		{"portrait", 3000, 4000, 1024, 1024, 1365},
		{"rounding", 1025, 3, 1024, 1024, 3},
		{"thin strip", 5000, 1, 1024, 1024, 1},
		{"no limit", 5000, 2000, 0, 5000, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.w, tt.h, tt.max)
			require.Equal(t, tt.wantW, w)
			require.Equal(t, tt.wantH, h)
		})
	}
}

func TestTargetSizePreservesAspectRatio(t *testing.T) {
	for _, sz := range [][2]int{{1500, 997}, {4032, 3024}, {1999, 1}, {2048, 2047}, {1100, 9000}} {
		w, h := TargetSize(sz[0], sz[1], 1024)
		require.Equal(t, 1024, w)
		exact := float64(sz[1]) * 1024 / float64(sz[0])
		require.LessOrEqual(t, math.Abs(float64(h)-exact), 1.0, "size %v", sz)
	}
}

func TestNormalizeDownscalesWideJPEG(t *testing.T) {
	n := New(DefaultConfig(), nil)

	artifact, err := n.Normalize(context.Background(), jpegSource(t, 2000, 1000), 1024, 90)
	require.NoError(t, err)

	require.Equal(t, 1024, artifact.Width)
	require.Equal(t, 512, artifact.Height)
	require.Equal(t, "image/jpeg", artifact.MediaType)
	require.Equal(t, 90, artifact.Quality)
	require.Equal(t, "meal.jpg", artifact.Filename)
	require.NotEmpty(t, artifact.ID)

	cfg, format := decodeConfig(t, artifact.Data)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 1024, cfg.Width)
	require.Equal(t, 512, cfg.Height)
}

func TestNormalizeKeepsSmallImageButReencodes(t *testing.T) {
	n := New(DefaultConfig(), nil)

	artifact, err := n.Normalize(context.Background(), pngSource(t, 300, 200), 1024, 90)
	require.NoError(t, err)

	require.Equal(t, 300, artifact.Width)
	require.Equal(t, 200, artifact.Height)
	require.Equal(t, "meal.jpg", artifact.Filename)

	_, format := decodeConfig(t, artifact.Data)
	require.Equal(t, "jpeg", format)
}

func TestNormalizeIsStableOnItsOwnOutput(t *testing.T) {
	n := New(DefaultConfig(), nil)
	ctx := context.Background()

	first, err := n.Normalize(ctx, jpegSource(t, 1600, 900), 1024, 90)
	require.NoError(t, err)

	second, err := n.Normalize(ctx, types.SourceImage{
		Name:      first.Filename,
		MediaType: first.MediaType,
		Data:      first.Data,
	}, 1024, 90)
	require.NoError(t, err)

	require.Equal(t, first.Width, second.Width)
	require.Equal(t, first.Height, second.Height)
	require.Equal(t, first.MediaType, second.MediaType)
}

func TestNormalizePNGOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MediaType = "image/png"
	n := New(cfg, nil)

	artifact, err := n.Normalize(context.Background(), jpegSource(t, 1200, 600), 1024, 90)
	require.NoError(t, err)
	require.Equal(t, "meal.png", artifact.Filename)

	_, format := decodeConfig(t, artifact.Data)
	require.Equal(t, "png", format)
}

func TestNormalizeRejectsNonImage(t *testing.T) {
	n := New(DefaultConfig(), nil)

	_, err := n.Normalize(context.Background(), types.SourceImage{
		Name:      "notes.txt",
		MediaType: "text/plain",
		Data:      []byte("hello"),
	}, 1024, 90)
	require.ErrorIs(t, err, types.ErrInvalidInputType)
}

func TestNormalizeDecodeErrors(t *testing.T) {
	n := New(DefaultConfig(), nil)
	ctx := context.Background()

	_, err := n.Normalize(ctx, types.SourceImage{Name: "empty.jpg", MediaType: "image/jpeg"}, 1024, 90)
	require.ErrorIs(t, err, types.ErrDecode)

	_, err = n.Normalize(ctx, types.SourceImage{
		Name:      "broken.jpg",
		MediaType: "image/jpeg",
		Data:      []byte{0xFF, 0xD8, 0x00, 0x01, 0x02},
	}, 1024, 90)
	require.ErrorIs(t, err, types.ErrDecode)
}

func TestRenderProvidesPreview(t *testing.T) {
	n := New(DefaultConfig(), nil)

	surface, err := n.Render(context.Background(), jpegSource(t, 2000, 1000), 1024)
	require.NoError(t, err)
	require.Equal(t, 2000, surface.SourceWidth)
	require.Equal(t, 1024, surface.Image.Bounds().Dx())
	require.True(t, strings.HasPrefix(surface.Preview, "data:image/jpeg;base64,"))
}

func TestRenderHonoursCancellation(t *testing.T) {
	n := New(DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Render(ctx, jpegSource(t, 64, 64), 1024)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEncodeRejectsUnknownMediaType(t *testing.T) {
	n := New(Config{MaxWidth: 1024, Quality: 90, MediaType: "image/heic"}, nil)

	_, err := n.Normalize(context.Background(), jpegSource(t, 64, 64), 1024, 90)
	require.ErrorIs(t, err, types.ErrUnsupportedMediaType)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Error(t, Config{MaxWidth: 0, Quality: 90, MediaType: "image/jpeg"}.Validate())
	require.Error(t, Config{MaxWidth: 10, Quality: 101, MediaType: "image/jpeg"}.Validate())
	require.ErrorIs(t, Config{MaxWidth: 10, Quality: 90, MediaType: "image/gif"}.Validate(), types.ErrUnsupportedMediaType)
}

func TestOutputFilename(t *testing.T) {
	require.Equal(t, "lunch.jpg", OutputFilename("lunch.png", "image/jpeg"))
	require.Equal(t, "lunch.webp", OutputFilename("/tmp/photos/lunch.JPG", "image/webp"))
	require.True(t, strings.HasSuffix(OutputFilename("", "image/jpeg"), ".jpg"))
}

func TestThumbnail(t *testing.T) {
	large := pngSource(t, 2048, 1024)
	out, mediaType, resized := Thumbnail(large.Data, large.MediaType, 1024, 90)
	require.True(t, resized)
	require.Equal(t, "image/jpeg", mediaType)
	cfg, _ := decodeConfig(t, out)
	require.Equal(t, 1024, cfg.Width)
	require.Equal(t, 512, cfg.Height)

	tall := jpegSource(t, 500, 1500)
	out, _, resized = Thumbnail(tall.Data, tall.MediaType, 1024, 90)
	require.True(t, resized)
	cfg, _ = decodeConfig(t, out)
	require.Equal(t, 1024, cfg.Height)

	small := pngSource(t, 200, 100)
	out, mediaType, resized = Thumbnail(small.Data, small.MediaType, 1024, 90)
	require.False(t, resized)
	require.Equal(t, "image/png", mediaType)
	require.Equal(t, small.Data, out)

	garbage := []byte("not an image")
	out, mediaType, resized = Thumbnail(garbage, "image/jpeg", 1024, 90)
	require.False(t, resized)
	require.Equal(t, "image/jpeg", mediaType)
	require.Equal(t, garbage, out)
}

func BenchmarkTargetSize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		TargetSize(4032, 3024, 1024)
	}
}

func BenchmarkNormalize(b *testing.B) {
	n := New(DefaultConfig(), nil)
	src := jpegSource(b, 2000, 1500)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := n.Normalize(ctx, src, 1024, 90); err != nil {
			b.Fatal(err)
		}
	}
}
