package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"os"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

type SquareOptions struct {
	Size    int
	Quality int
	// Gaussian sigma for the background
	Blur float64
	// Opacity of the black layer over the background
	Darken float64
	// Share of the canvas the picture may cover
	Inset float64
}

func DefaultSquareOptions() SquareOptions {
	return SquareOptions{
		Size:    1200,
		Quality: 95,
		Blur:    40,
		Darken:  0.2,
		Inset:   0.9,
	}
}

// MakeSquare places img, shrunk to fit the inset, on a blurred and darkened
// cover-crop of itself.
func MakeSquare(img image.Image, opts SquareOptions) *image.NRGBA {
	size := opts.Size

	bg := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	bg = imaging.Blur(bg, opts.Blur)
	bg = imaging.Overlay(bg, imaging.New(size, size, color.Black), image.Pt(0, 0), opts.Darken)

	inner := int(float64(size) * opts.Inset)
	fg := imaging.Fit(img, inner, inner, imaging.Lanczos)

	return imaging.PasteCenter(bg, fg)
}

type squareGenerator struct {
	client *http.Client
	opts   SquareOptions
	logger *zap.Logger
}

func newSquareGenerator(client *http.Client, opts SquareOptions, logger *zap.Logger) (*squareGenerator, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, opts.Size)
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return nil, fmt.Errorf("%w: quality must be between 1 and 100, got %d", ErrInvalidConfig, opts.Quality)
	}
	return &squareGenerator{client: client, opts: opts, logger: logger}, nil
}

// Generate reads src (a URL or a local path) and writes the square JPEG to out.
func (sg *squareGenerator) Generate(ctx context.Context, src, out string) error {
	img, err := sg.open(ctx, src)
	if err != nil {
		return err
	}
	sg.logger.Debug("source decoded",
		zap.String("source", src),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)

	sq := MakeSquare(img, sg.opts)

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := imaging.Encode(f, sq, imaging.JPEG, imaging.JPEGQuality(sg.opts.Quality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", out, err)
	}
	return f.Close()
}

func (sg *squareGenerator) open(ctx context.Context, src string) (image.Image, error) {
	if isURL(src) {
		return sg.download(ctx, src)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeImage(f, src)
}

func (sg *squareGenerator) download(ctx context.Context, src string) (image.Image, error) {
	sg.logger.Info("downloading image", zap.String("url", src))

	resp, err := download(ctx, sg.client, src)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeImage(resp.Body, src)
}

func decodeImage(r io.Reader, name string) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return img, nil
}
