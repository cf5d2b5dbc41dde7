package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// Blob size limit enforced by the PDS for post images.
const maxImageBytes = 1_000_000

// Image is an attachment, loaded in full before anything is uploaded.
type Image struct {
	Data     []byte
	MimeType string
	Alt      string
	Width    int
	Height   int
}

func isURL(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// loadImageSource loads src from the web when it is an http(s) URL and from
// disk otherwise.
func loadImageSource(ctx context.Context, client *http.Client, src, alt string) (Image, error) {
	if isURL(src) {
		return FetchImage(ctx, client, src, alt)
	}
	return LoadImage(src, alt)
}

func LoadImage(path, alt string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to read image: %w", ErrInvalidPost, err)
	}
	if info.Size() > maxImageBytes {
		return Image{}, fmt.Errorf("%w: image is %d bytes, limit is %d: %s", ErrInvalidPost, info.Size(), maxImageBytes, path)
	}

	// Detect MIME type based on file extension
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("%w: not an image: %s", ErrInvalidPost, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to read image: %w", ErrInvalidPost, err)
	}
	return newImage(data, alt, path)
}

// FetchImage downloads an attachment. The body is read up to one byte past
// the blob limit so oversized images are rejected without buffering them.
func FetchImage(ctx context.Context, client *http.Client, src, alt string) (Image, error) {
	resp, err := download(ctx, client, src)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrInvalidPost, err)
	}
	defer resp.Body.Close()
	if resp.ContentLength > maxImageBytes {
		return Image{}, fmt.Errorf("%w: image is %d bytes, limit is %d: %s", ErrInvalidPost, resp.ContentLength, maxImageBytes, src)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to download %s: %w", ErrInvalidPost, src, err)
	}
	return newImage(data, alt, src)
}

// newImage checks the blob limit and reads the dimensions. The MIME type
// comes from the decoded format, not from the name.
func newImage(data []byte, alt, name string) (Image, error) {
	if len(data) > maxImageBytes {
		return Image{}, fmt.Errorf("%w: image is over %d bytes: %s", ErrInvalidPost, maxImageBytes, name)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to decode image %s: %w", ErrInvalidPost, name, err)
	}

	return Image{
		Data:     data,
		MimeType: "image/" + format,
		Alt:      alt,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// download GETs src and returns the response when it is a 200. The caller
// closes the body.
func download(ctx context.Context, client *http.Client, src string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s: %s", src, resp.Status)
	}
	return resp, nil
}
