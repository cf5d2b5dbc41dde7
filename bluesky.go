package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"go.uber.org/zap"
)

const userAgent = "proust-bluesky-images"

var _ Client = (*BlueskyClient)(nil)

// BlueskyClient talks XRPC to a PDS. It holds no session of its own; the
// Session returned by Login is passed back into Post.
type BlueskyClient struct {
	Host       string
	HTTPClient *http.Client
	logger     *zap.Logger
}

func NewBlueskyClient(host string, timeout time.Duration, logger *zap.Logger) *BlueskyClient {
	return &BlueskyClient{
		Host:       host,
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (bsk *BlueskyClient) xrpcClient(auth *xrpc.AuthInfo) *xrpc.Client {
	ua := userAgent
	return &xrpc.Client{
		Client:    bsk.HTTPClient,
		Host:      bsk.Host,
		Auth:      auth,
		UserAgent: &ua,
	}
}

func (bsk *BlueskyClient) Login(ctx context.Context, creds Credentials) (*Session, error) {
	bsk.logger.Debug("creating session", zap.String("host", bsk.Host))

	session, err := atproto.ServerCreateSession(ctx, bsk.xrpcClient(nil), &atproto.ServerCreateSession_Input{
		Identifier: creds.Handle,
		Password:   creds.AppPassword,
	})
	if err != nil {
		return nil, err
	}
	if session.Did == "" || session.AccessJwt == "" {
		return nil, errors.New("server returned an incomplete session")
	}

	return &Session{
		DID:        session.Did,
		Handle:     session.Handle,
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
	}, nil
}

func (bsk *BlueskyClient) Post(ctx context.Context, sess *Session, post Post) (*PostResult, error) {
	if sess == nil {
		return nil, errors.New("no session")
	}
	client := bsk.xrpcClient(&xrpc.AuthInfo{
		AccessJwt:  sess.AccessJwt,
		RefreshJwt: sess.RefreshJwt,
		Handle:     sess.Handle,
		Did:        sess.DID,
	})

	record := appbsky.FeedPost{
		Text:          post.Text,
		LexiconTypeID: "app.bsky.feed.post",
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Langs:         post.Langs,
	}

	if len(post.Images) > 0 {
		embed, err := bsk.uploadImages(ctx, client, post.Images)
		if err != nil {
			return nil, err
		}
		record.Embed = &appbsky.FeedPost_Embed{EmbedImages: embed}
	}

	res, err := atproto.RepoCreateRecord(ctx, client, &atproto.RepoCreateRecord_Input{
		Collection: "app.bsky.feed.post",
		Repo:       sess.DID,
		Record:     &lexutil.LexiconTypeDecoder{Val: &record},
	})
	if err != nil {
		return nil, err
	}
	if res.Uri == "" {
		return nil, errors.New("server returned no record uri")
	}
	return &PostResult{URI: res.Uri, CID: res.Cid}, nil
}

func (bsk *BlueskyClient) uploadImages(ctx context.Context, client *xrpc.Client, images []Image) (*appbsky.EmbedImages, error) {
	embed := &appbsky.EmbedImages{
		LexiconTypeID: "app.bsky.embed.images",
	}
	for i, img := range images {
		// RepoUploadBlob always sends */*, so call the procedure directly to
		// pass the real content type.
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = "*/*"
		}
		var out atproto.RepoUploadBlob_Output
		err := client.LexDo(ctx, lexutil.Procedure, mimeType, "com.atproto.repo.uploadBlob", nil, bytes.NewReader(img.Data), &out)
		if err != nil {
			return nil, fmt.Errorf("upload image %d: %w", i+1, err)
		}
		bsk.logger.Debug("uploaded image",
			zap.Int("index", i+1),
			zap.String("mime", img.MimeType),
			zap.Int("bytes", len(img.Data)),
		)

		ei := &appbsky.EmbedImages_Image{
			Alt:   img.Alt,
			Image: out.Blob,
		}
		if img.Width > 0 && img.Height > 0 {
			ei.AspectRatio = &appbsky.EmbedDefs_AspectRatio{
				Width:  int64(img.Width),
				Height: int64(img.Height),
			}
		}
		embed.Images = append(embed.Images, ei)
	}
	return embed, nil
}
