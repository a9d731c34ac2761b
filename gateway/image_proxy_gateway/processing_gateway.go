package image_proxy_gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"time"

	"imgproxy/domain"
	"imgproxy/utils/errors"
	"imgproxy/utils/metrics"

	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	processingLayer     = "gateway"
	processingComponent = "ProcessingGateway"
)

// ProcessingGateway implements ImageProcessingPort: decode, fit-inside resize
// and re-encode as JPEG, PNG or WebP.
type ProcessingGateway struct {
	defaultQuality int
	webpEffort     int
}

// NewProcessingGateway creates a new ProcessingGateway.
func NewProcessingGateway(defaultQuality, webpEffort int) *ProcessingGateway {
	if defaultQuality <= 0 || defaultQuality > 100 {
		defaultQuality = domain.ImageProxyDefaultQuality
	}
	if webpEffort < 0 || webpEffort > 6 {
		webpEffort = domain.ImageProxyWebPEffort
	}
	return &ProcessingGateway{defaultQuality: defaultQuality, webpEffort: webpEffort}
}

// ProcessImage decodes data, resizes it to fit within the requested box
// (never upscaling) and encodes it in the resolved output format.
func (g *ProcessingGateway) ProcessImage(ctx context.Context, data []byte, params domain.TransformParams) (*domain.TransformResult, error) {
	start := time.Now()

	if len(data) == 0 {
		return nil, g.processingError("empty image data", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, g.processingError("transform cancelled", err)
	}

	img, detected, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, g.processingError("failed to decode image", err)
	}

	original := domain.NormalizeFormat(detected)
	alpha := hasAlpha(img)
	output := ResolveOutputFormat(original, params.Format, alpha)

	bounds := img.Bounds()
	width, height := FitInside(bounds.Dx(), bounds.Dy(), params.Width, params.Height)
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}

	if err := ctx.Err(); err != nil {
		return nil, g.processingError("transform cancelled", err)
	}

	quality := g.defaultQuality
	if params.Quality != nil {
		quality = *params.Quality
	}

	encoded, err := g.encode(img, output, quality)
	if err != nil {
		return nil, g.processingError(fmt.Sprintf("failed to encode %s", output), err)
	}

	hash := sha256.Sum256(encoded)
	etag := hex.EncodeToString(hash[:16])

	metrics.RecordTransform(ctx, string(output), time.Since(start).Seconds(), len(encoded))

	return &domain.TransformResult{
		Data:           encoded,
		ContentType:    output.ContentType(),
		OriginalFormat: original,
		OutputFormat:   output,
		Width:          width,
		Height:         height,
		SizeBytes:      len(encoded),
		ETag:           etag,
	}, nil
}

func (g *ProcessingGateway) processingError(message string, cause error) error {
	return errors.NewImageProcessingError(message, processingLayer, processingComponent, "ProcessImage", cause, nil)
}

func (g *ProcessingGateway) encode(img image.Image, format domain.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case domain.FormatWebP:
		if err := webp.Encode(&buf, img, webp.Options{Quality: quality, Method: g.webpEffort}); err != nil {
			return nil, err
		}
	case domain.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, reducePalette(img)); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, flattenAlpha(img), &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ResolveOutputFormat picks the encoded format for a transform.
//
//   - no format requested: keep the detected format
//   - jpeg/jpg: always jpeg
//   - webp: always webp, PNG sources included
//   - png: only when the source has alpha, otherwise keep the detected format
//   - anything else: keep the detected format
//
// Detected formats without an encoder fall back to png when the image has
// alpha and jpeg otherwise.
func ResolveOutputFormat(detected domain.ImageFormat, requested string, alpha bool) domain.ImageFormat {
	switch domain.NormalizeFormat(requested) {
	case domain.FormatJPEG:
		return domain.FormatJPEG
	case domain.FormatWebP:
		return domain.FormatWebP
	case domain.FormatPNG:
		if alpha {
			return domain.FormatPNG
		}
	}

	switch detected {
	case domain.FormatJPEG, domain.FormatPNG, domain.FormatWebP:
		return detected
	}
	if alpha {
		return domain.FormatPNG
	}
	return domain.FormatJPEG
}

// FitInside scales (w, h) down to fit within (maxW, maxH), preserving aspect
// ratio. A non-positive bound is unconstrained. The result is never larger
// than the input.
func FitInside(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}

	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	if scale >= 1 {
		return w, h
	}

	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(1, min(nw, w)), max(1, min(nh, h))
}

// hasAlpha reports whether any pixel is not fully opaque. A color model with
// an alpha channel whose pixels are all opaque does not count.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// flattenAlpha composites img over white; JPEG has no alpha channel.
func flattenAlpha(img image.Image) image.Image {
	if !hasAlpha(img) {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

const maxPaletteSize = 256

// reducePalette converts img to a paletted image when it uses at most 256
// distinct colors.
func reducePalette(img image.Image) image.Image {
	if _, ok := img.(*image.Paletted); ok {
		return img
	}

	b := img.Bounds()
	index := make(map[color.NRGBA]uint8, maxPaletteSize)
	palette := make(color.Palette, 0, maxPaletteSize)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if _, seen := index[c]; seen {
				continue
			}
			if len(palette) == maxPaletteSize {
				return img
			}
			index[c] = uint8(len(palette))
			palette = append(palette, c)
		}
	}

	dst := image.NewPaletted(b, palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetColorIndex(x, y, index[c])
		}
	}
	return dst
}

// jpegQuality clamps quality into the encoder's accepted 1-100 range.
func jpegQuality(q int) int {
	return max(1, min(q, 100))
}
