package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testHandle   = "proust.bsky.social"
	testPassword = "abcd-efgh-ijkl-mnop"
	testDID      = "did:plc:abc"
	testCID      = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
)

// allEnvKeys lists every environment variable the command reads.
var allEnvKeys = []string{
	"BLUESKY_USERNAME",
	"BLUESKY_HANDLE",
	"BLUESKY_APP_PASSWORD",
	"BLUESKY_HOST",
	"BLUESKY_TIMEOUT",
	"POST_TEXT",
	"POST_DRAFT",
	"POST_LANGS",
	"DRY_RUN",
	"VERBOSE",
}

// isolateEnv unsets every variable the command reads so tests don't pick up
// real credentials from the host. t.Cleanup restores the original values.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

// xrpcFailure is an error response the fake PDS sends instead of success.
type xrpcFailure struct {
	Status  int
	Name    string
	Message string
}

// fakePDS serves the three XRPC procedures the client uses and records
// every call it receives.
type fakePDS struct {
	server *httptest.Server

	// LoginFailure and PostFailure replace the normal response when set.
	LoginFailure *xrpcFailure
	PostFailure  *xrpcFailure
	// URI returned by createRecord. Generated per call when empty.
	URI string

	mu          sync.Mutex
	loginCalls  int
	uploadCalls int
	postCalls   int
	records     []map[string]any
	authHeaders []string
	uploadTypes []string
}

func newFakePDS(t *testing.T) *fakePDS {
	t.Helper()

	pds := &fakePDS{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", pds.createSession)
	mux.HandleFunc("POST /xrpc/com.atproto.repo.uploadBlob", pds.uploadBlob)
	mux.HandleFunc("POST /xrpc/com.atproto.repo.createRecord", pds.createRecord)

	pds.server = httptest.NewServer(mux)
	t.Cleanup(pds.server.Close)
	return pds
}

func (pds *fakePDS) URL() string {
	return pds.server.URL
}

func (pds *fakePDS) Calls() (login, upload, post int) {
	pds.mu.Lock()
	defer pds.mu.Unlock()
	return pds.loginCalls, pds.uploadCalls, pds.postCalls
}

func (pds *fakePDS) TotalCalls() int {
	login, upload, post := pds.Calls()
	return login + upload + post
}

func (pds *fakePDS) Records() []map[string]any {
	pds.mu.Lock()
	defer pds.mu.Unlock()
	return append([]map[string]any(nil), pds.records...)
}

func (pds *fakePDS) AuthHeaders() []string {
	pds.mu.Lock()
	defer pds.mu.Unlock()
	return append([]string(nil), pds.authHeaders...)
}

// UploadTypes returns the Content-Type of every uploadBlob call.
func (pds *fakePDS) UploadTypes() []string {
	pds.mu.Lock()
	defer pds.mu.Unlock()
	return append([]string(nil), pds.uploadTypes...)
}

func (pds *fakePDS) createSession(w http.ResponseWriter, r *http.Request) {
	pds.mu.Lock()
	pds.loginCalls++
	failure := pds.LoginFailure
	pds.mu.Unlock()

	var in struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeXRPCError(w, xrpcFailure{Status: http.StatusBadRequest, Name: "InvalidRequest", Message: err.Error()})
		return
	}
	if failure != nil {
		writeXRPCError(w, *failure)
		return
	}
	if in.Identifier != testHandle || in.Password != testPassword {
		writeXRPCError(w, xrpcFailure{Status: http.StatusUnauthorized, Name: "AuthenticationRequired", Message: "Invalid identifier or password"})
		return
	}

	writeJSON(w, map[string]any{
		"accessJwt":  "access-jwt",
		"refreshJwt": "refresh-jwt",
		"handle":     testHandle,
		"did":        testDID,
	})
}

func (pds *fakePDS) uploadBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeXRPCError(w, xrpcFailure{Status: http.StatusBadRequest, Name: "InvalidRequest", Message: err.Error()})
		return
	}

	pds.mu.Lock()
	pds.uploadCalls++
	pds.authHeaders = append(pds.authHeaders, r.Header.Get("Authorization"))
	pds.uploadTypes = append(pds.uploadTypes, r.Header.Get("Content-Type"))
	failure := pds.PostFailure
	pds.mu.Unlock()

	if failure != nil {
		writeXRPCError(w, *failure)
		return
	}

	writeJSON(w, map[string]any{
		"blob": map[string]any{
			"$type":    "blob",
			"ref":      map[string]any{"$link": testCID},
			"mimeType": r.Header.Get("Content-Type"),
			"size":     len(data),
		},
	})
}

func (pds *fakePDS) createRecord(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeXRPCError(w, xrpcFailure{Status: http.StatusBadRequest, Name: "InvalidRequest", Message: err.Error()})
		return
	}

	pds.mu.Lock()
	pds.postCalls++
	n := pds.postCalls
	pds.authHeaders = append(pds.authHeaders, r.Header.Get("Authorization"))
	failure := pds.PostFailure
	uri := pds.URI
	if failure == nil {
		pds.records = append(pds.records, in)
	}
	pds.mu.Unlock()

	if failure != nil {
		writeXRPCError(w, *failure)
		return
	}
	if uri == "" {
		uri = fmt.Sprintf("at://%s/app.bsky.feed.post/3kpost%d", testDID, n)
	}
	writeJSON(w, map[string]any{"uri": uri, "cid": testCID})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeXRPCError(w http.ResponseWriter, f xrpcFailure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": f.Name, "message": f.Message})
}

// writePNG writes a solid w×h PNG into dir and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int, c color.Color) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}
