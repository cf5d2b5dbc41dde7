package main

import (
	"context"
	"fmt"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Client is the remote social network, reduced to the two calls we make.
type Client interface {
	Login(ctx context.Context, creds Credentials) (*Session, error)
	Post(ctx context.Context, sess *Session, post Post) (*PostResult, error)
}

// Session is the authenticated context returned by Login.
type Session struct {
	DID        string
	Handle     string
	AccessJwt  string
	RefreshJwt string
}

type PostResult struct {
	URI string
	CID string
}

// WebURL returns the bsky.app link for the post, or "" if URI is not a
// well-formed AT-URI.
func (r PostResult) WebURL() string {
	aturi, err := syntax.ParseATURI(r.URI)
	if err != nil {
		return ""
	}
	rkey := aturi.RecordKey().String()
	if rkey == "" {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", aturi.Authority().String(), rkey)
}
