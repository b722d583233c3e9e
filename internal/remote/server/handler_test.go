package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/remote"
	"github.com/kilupskalvis/metavc/internal/remote/metastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepoOpener opens bbolt metastores under a temp directory, creating
// repositories on first use.
type testRepoOpener struct {
	mu     sync.Mutex
	dir    string
	stores map[string]metastore.MetaStore
}

func newTestRepoOpener(t *testing.T) *testRepoOpener {
	o := &testRepoOpener{dir: t.TempDir(), stores: make(map[string]metastore.MetaStore)}
	t.Cleanup(func() {
		for _, st := range o.stores {
			st.Close()
		}
	})
	return o
}

func (o *testRepoOpener) Open(name string) (metastore.MetaStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.stores[name]; ok {
		return st, nil
	}
	st, err := metastore.NewBboltStore(filepath.Join(o.dir, strings.ReplaceAll(name, "/", "_")+".db"))
	if err != nil {
		return nil, err
	}
	o.stores[name] = st
	return st, nil
}

func newTestServer(t *testing.T, cfg *ServerConfig) (*httptest.Server, *testRepoOpener) {
	t.Helper()
	repos := newTestRepoOpener(t)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := httptest.NewServer(Handler(repos, cfg, logger))
	t.Cleanup(srv.Close)
	return srv, repos
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func putJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, err := http.NewRequest("PUT", url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func uploadCommit(t *testing.T, base, repoName, id, parent string) {
	t.Helper()
	resp := postJSON(t, fmt.Sprintf("%s/api/v1/repos/%s/commits", base, repoName), &remote.CommitBundle{
		Commit: &models.Commit{ID: id, ParentID: parent, Message: "m-" + id, Timestamp: time.Now()},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHandler_Healthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_HealthzOpenWithAuthToken(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.AuthToken = "sekret"
	srv, _ := newTestServer(t, cfg)

	// Liveness probes carry no credentials.
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	// The API surface still requires the token.
	resp, err := http.Get(srv.URL + "/api/v1/repos/meta/refs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_NegotiatePush(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	uploadCommit(t, srv.URL, "meta", "c1", "")

	resp := postJSON(t, srv.URL+"/api/v1/repos/meta/negotiate/push", &remote.NegotiatePushRequest{
		Ref:     "master",
		Commits: []string{"c2", "c1"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var neg remote.NegotiatePushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&neg))
	assert.Equal(t, []string{"c2"}, neg.MissingCommits)
	assert.Equal(t, "", neg.RemoteTip) // ref does not exist yet
}

func TestHandler_RefUpdateCAS(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	uploadCommit(t, srv.URL, "meta", "c1", "")
	uploadCommit(t, srv.URL, "meta", "c2", "c1")

	// Create the ref
	resp := putJSON(t, srv.URL+"/api/v1/repos/meta/refs/master", &remote.RefUpdateRequest{CommitID: "c1"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Stale expected value is rejected with 409
	resp = putJSON(t, srv.URL+"/api/v1/repos/meta/refs/master", &remote.RefUpdateRequest{CommitID: "c2", Expected: "cX"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Correct expected value moves the ref
	resp = putJSON(t, srv.URL+"/api/v1/repos/meta/refs/master", &remote.RefUpdateRequest{CommitID: "c2", Expected: "c1"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/api/v1/repos/meta/refs/master")
	require.NoError(t, err)
	defer getResp.Body.Close()
	var ref models.Ref
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&ref))
	assert.Equal(t, "c2", ref.CommitID)
}

func TestHandler_EnsurePin(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// Pinning before the commit object exists is rejected
	resp := putJSON(t, srv.URL+"/api/v1/repos/sub/pins/c1", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	uploadCommit(t, srv.URL, "sub", "c1", "")

	resp = putJSON(t, srv.URL+"/api/v1/repos/sub/pins/c1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pin remote.PinResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pin))
	resp.Body.Close()
	assert.True(t, pin.Created)

	// Second pin is a no-op
	resp = putJSON(t, srv.URL+"/api/v1/repos/sub/pins/c1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pin))
	resp.Body.Close()
	assert.False(t, pin.Created)

	// The pin is visible as a ref and cannot be deleted or moved
	getResp, err := http.Get(srv.URL + "/api/v1/repos/sub/refs/commits/c1")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var ref models.Ref
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&ref))
	assert.Equal(t, "c1", ref.CommitID)

	req, err := http.NewRequest("DELETE", srv.URL+"/api/v1/repos/sub/refs/commits/c1", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, delResp.StatusCode)

	resp = putJSON(t, srv.URL+"/api/v1/repos/sub/refs/commits/c1", &remote.RefUpdateRequest{CommitID: "c9"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandler_RepoInfo(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	uploadCommit(t, srv.URL, "meta", "c1", "")
	resp := putJSON(t, srv.URL+"/api/v1/repos/meta/refs/master", &remote.RefUpdateRequest{CommitID: "c1"})
	resp.Body.Close()
	resp = putJSON(t, srv.URL+"/api/v1/repos/meta/pins/c1", nil)
	resp.Body.Close()

	infoResp, err := http.Get(srv.URL + "/api/v1/repos/meta/info")
	require.NoError(t, err)
	defer infoResp.Body.Close()

	var info remote.RepoInfo
	require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&info))
	assert.Equal(t, 1, info.RefCount)
	assert.Equal(t, 1, info.PinCount)
	assert.Equal(t, 1, info.CommitCount)
}

func TestHandler_AuthToken(t *testing.T) {
	srv, _ := newTestServer(t, &ServerConfig{MaxRequestBody: 1 << 20, AuthToken: "sekret"})

	// Missing token
	resp, err := http.Get(srv.URL + "/api/v1/repos/meta/refs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid token
	req, err := http.NewRequest("GET", srv.URL+"/api/v1/repos/meta/refs", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sekret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPClient_AgainstServer(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	client := remote.NewHTTPClient(srv.URL, "meta", "")
	ctx := t.Context()

	require.NoError(t, client.UploadCommitBundle(ctx, &remote.CommitBundle{
		Commit: &models.Commit{ID: "c1", Message: "first", Timestamp: time.Now()},
		Entries: []*models.IndexEntry{
			{Path: "lib", Kind: models.EntrySubRepo, SubRepoID: "lib", SubCommitID: "s1"},
		},
	}))

	have, err := client.HaveCommits(ctx, []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, have.Have)
	assert.Equal(t, []string{"c2"}, have.Missing)

	require.NoError(t, client.UpdateRef(ctx, "master", "c1", ""))

	neg, err := client.NegotiatePush(ctx, "master", []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, "c1", neg.RemoteTip)
	assert.Empty(t, neg.MissingCommits)

	created, err := client.EnsurePin(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, created)

	ref, err := client.GetRef(ctx, models.PinRef("c1"))
	require.NoError(t, err)
	assert.Equal(t, "c1", ref.CommitID)

	bundle, err := client.DownloadCommitBundle(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, bundle.Entries, 1)
	assert.Equal(t, "s1", bundle.Entries[0].SubCommitID)
}
