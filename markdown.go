package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DraftFile is a post written as markdown. The body is the post text and the
// optional frontmatter carries languages and image attachments.
type DraftFile struct {
	Text   string
	Langs  []string
	Images []DraftImage
	// Directory of the draft, image paths are relative to it
	BaseDir string
}

type DraftImage struct {
	Path string `yaml:"path"`
	Alt  string `yaml:"alt"`
}

type draftFrontMatter struct {
	Langs  []string     `yaml:"langs"`
	Images []DraftImage `yaml:"images"`
}

var fmRe = regexp.MustCompile(`(?s)^(\s*?)---\s*\n(.*?)\n---\s*\n?`)

func ParseDraftFile(file string) (*DraftFile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: read draft: %w", ErrInvalidPost, err)
	}
	draft, err := parseDraft(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, file)
	}
	draft.BaseDir = filepath.Dir(file)
	return draft, nil
}

func parseDraft(data []byte) (*DraftFile, error) {
	// Drop BOM
	input := strings.TrimPrefix(string(data), "\uFEFF")
	draft := &DraftFile{}

	m := fmRe.FindStringSubmatchIndex(input)
	if m == nil || m[0] != 0 {
		// No frontmatter, the whole file is the text
		draft.Text = strings.TrimSpace(input)
		return draft, nil
	}

	var fm draftFrontMatter
	if err := yaml.Unmarshal([]byte(input[m[4]:m[5]]), &fm); err != nil {
		return nil, fmt.Errorf("%w: draft frontmatter: %w", ErrInvalidPost, err)
	}
	for i, img := range fm.Images {
		if strings.TrimSpace(img.Path) == "" {
			return nil, fmt.Errorf("%w: draft image %d has no path", ErrInvalidPost, i+1)
		}
	}

	draft.Text = strings.TrimSpace(input[m[1]:])
	draft.Langs = fm.Langs
	draft.Images = fm.Images
	return draft, nil
}
