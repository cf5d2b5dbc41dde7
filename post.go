package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/rivo/uniseg"
)

// Limits of the app.bsky.feed.post record.
const (
	maxPostGraphemes = 300
	maxPostBytes     = 3000
	maxPostImages    = 4
	maxPostLangs     = 3
)

// Post is the content of a single feed post.
type Post struct {
	Text   string
	Langs  []string
	Images []Image
}

func (p Post) Validate() error {
	if strings.TrimSpace(p.Text) == "" && len(p.Images) == 0 {
		return fmt.Errorf("%w: empty post", ErrInvalidPost)
	}
	if n := uniseg.GraphemeClusterCount(p.Text); n > maxPostGraphemes {
		return fmt.Errorf("%w: text is %d characters, limit is %d", ErrInvalidPost, n, maxPostGraphemes)
	}
	if n := len(p.Text); n > maxPostBytes {
		return fmt.Errorf("%w: text is %d bytes, limit is %d", ErrInvalidPost, n, maxPostBytes)
	}
	if len(p.Langs) > maxPostLangs {
		return fmt.Errorf("%w: %d languages given, limit is %d", ErrInvalidPost, len(p.Langs), maxPostLangs)
	}
	for _, lang := range p.Langs {
		if _, err := syntax.ParseLanguage(lang); err != nil {
			return fmt.Errorf("%w: language %q: %w", ErrInvalidPost, lang, err)
		}
	}
	if len(p.Images) > maxPostImages {
		return fmt.Errorf("%w: %d images attached, limit is %d", ErrInvalidPost, len(p.Images), maxPostImages)
	}
	return nil
}

// BuildPost assembles the post from the draft file, the text override or the
// archive's fixed message, plus any images given on the command line. Image
// sources are local paths or http(s) URLs.
func BuildPost(ctx context.Context, cfg Config) (Post, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	post := Post{
		Text:  defaultPostText,
		Langs: cfg.Langs,
	}
	if cfg.Text != "" {
		post.Text = cfg.Text
	}

	var draft *DraftFile
	if cfg.Draft != "" {
		var err error
		if draft, err = ParseDraftFile(cfg.Draft); err != nil {
			return Post{}, err
		}
	}

	// Count before loading so nothing is downloaded for a post that would
	// be refused anyway.
	n := len(cfg.Images)
	if draft != nil {
		n += len(draft.Images)
	}
	if n > maxPostImages {
		return Post{}, fmt.Errorf("%w: %d images attached, limit is %d", ErrInvalidPost, n, maxPostImages)
	}

	if draft != nil {
		post.Text = draft.Text
		if len(draft.Langs) > 0 {
			post.Langs = draft.Langs
		}
		for _, di := range draft.Images {
			path := di.Path
			if !isURL(path) && !filepath.IsAbs(path) {
				path = filepath.Join(draft.BaseDir, path)
			}
			img, err := loadImageSource(ctx, client, path, di.Alt)
			if err != nil {
				return Post{}, err
			}
			post.Images = append(post.Images, img)
		}
	}

	for i, path := range cfg.Images {
		alt := ""
		if i < len(cfg.Alts) {
			alt = cfg.Alts[i]
		}
		img, err := loadImageSource(ctx, client, path, alt)
		if err != nil {
			return Post{}, err
		}
		post.Images = append(post.Images, img)
	}

	return post, post.Validate()
}
