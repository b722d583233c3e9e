package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kilupskalvis/metavc/internal/models"
)

// RemoteClient defines the contract for communicating with one repository on
// a metavc-server.
type RemoteClient interface {
	NegotiatePush(ctx context.Context, ref string, commitIDs []string) (*NegotiatePushResponse, error)
	HaveCommits(ctx context.Context, ids []string) (*HaveCommitsResponse, error)

	UploadCommitBundle(ctx context.Context, bundle *CommitBundle) error
	DownloadCommitBundle(ctx context.Context, commitID string) (*CommitBundle, error)

	ListRefs(ctx context.Context) ([]*models.Ref, error)
	GetRef(ctx context.Context, name string) (*models.Ref, error)
	UpdateRef(ctx context.Context, name, newTip, expectedTip string) error
	DeleteRef(ctx context.Context, name string) error

	// EnsurePin guarantees a permanent ref "commits/<id>" exists, pointing at
	// the commit. Idempotent: repeating it never changes remote state.
	EnsurePin(ctx context.Context, commitID string) (created bool, err error)

	GetRepoInfo(ctx context.Context) (*RepoInfo, error)
}

// HTTPClient implements RemoteClient over HTTP.
type HTTPClient struct {
	baseURL    string
	repoPath   string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP-based remote client for the repository named
// repoPath on the server at baseURL.
func NewHTTPClient(baseURL, repoPath, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		repoPath:   repoPath,
		token:      token,
		httpClient: &http.Client{},
	}
}

// ParseLocation splits a repository location like "http://host:port/meta/lib"
// into the base server URL and the repository path on that server.
func ParseLocation(location string) (baseURL, repoPath string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid remote location: %w", err)
	}

	repoPath = strings.Trim(u.Path, "/")
	if repoPath == "" {
		return "", "", fmt.Errorf("remote location must include a repository path (e.g., https://host/myrepo)")
	}

	u.Path = ""
	return u.String(), repoPath, nil
}

// NewClientForLocation creates an HTTP client from a full repository location.
func NewClientForLocation(location, token string) (*HTTPClient, error) {
	baseURL, repoPath, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return NewHTTPClient(baseURL, repoPath, token), nil
}

func (c *HTTPClient) repoURL(path string) string {
	// Escape the repo path so nested repository names stay a single segment.
	return fmt.Sprintf("%s/api/v1/repos/%s%s", c.baseURL, url.PathEscape(c.repoPath), path)
}

func (c *HTTPClient) do(ctx context.Context, method, rawurl string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, rawurl string, reqBody, respBody interface{}) error {
	var body io.Reader
	headers := map[string]string{"Content-Type": "application/json"}

	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, rawurl, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// NegotiatePush asks the server for the target ref's tip and which commits it needs.
func (c *HTTPClient) NegotiatePush(ctx context.Context, ref string, commitIDs []string) (*NegotiatePushResponse, error) {
	req := &NegotiatePushRequest{Ref: ref, Commits: commitIDs}
	var resp NegotiatePushResponse
	if err := c.doJSON(ctx, "POST", c.repoURL("/negotiate/push"), req, &resp); err != nil {
		return nil, fmt.Errorf("negotiate push: %w", err)
	}
	return &resp, nil
}

// HaveCommits asks the server which commit objects it already has.
func (c *HTTPClient) HaveCommits(ctx context.Context, ids []string) (*HaveCommitsResponse, error) {
	req := &HaveCommitsRequest{IDs: ids}
	var resp HaveCommitsResponse
	if err := c.doJSON(ctx, "POST", c.repoURL("/commits/have"), req, &resp); err != nil {
		return nil, fmt.Errorf("have commits: %w", err)
	}
	return &resp, nil
}

// UploadCommitBundle transfers a commit with its index entries to the server.
func (c *HTTPClient) UploadCommitBundle(ctx context.Context, bundle *CommitBundle) error {
	if err := c.doJSON(ctx, "POST", c.repoURL("/commits"), bundle, nil); err != nil {
		return fmt.Errorf("upload commit %s: %w", bundle.Commit.ShortID(), err)
	}
	return nil
}

// DownloadCommitBundle retrieves a commit with its index entries.
func (c *HTTPClient) DownloadCommitBundle(ctx context.Context, commitID string) (*CommitBundle, error) {
	var bundle CommitBundle
	if err := c.doJSON(ctx, "GET", c.repoURL("/commits/"+commitID+"/bundle"), nil, &bundle); err != nil {
		return nil, fmt.Errorf("download commit %s: %w", commitID, err)
	}
	return &bundle, nil
}

// ListRefs returns all refs on the remote, branches and pins alike.
func (c *HTTPClient) ListRefs(ctx context.Context) ([]*models.Ref, error) {
	var refs []*models.Ref
	if err := c.doJSON(ctx, "GET", c.repoURL("/refs"), nil, &refs); err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// GetRef returns a single remote ref.
func (c *HTTPClient) GetRef(ctx context.Context, name string) (*models.Ref, error) {
	var ref models.Ref
	if err := c.doJSON(ctx, "GET", c.repoURL("/refs/"+url.PathEscape(name)), nil, &ref); err != nil {
		return nil, fmt.Errorf("get ref %s: %w", name, err)
	}
	return &ref, nil
}

// UpdateRef performs a compare-and-swap update of a remote ref.
// An empty expectedTip asserts the ref does not yet exist.
func (c *HTTPClient) UpdateRef(ctx context.Context, name, newTip, expectedTip string) error {
	req := &RefUpdateRequest{CommitID: newTip, Expected: expectedTip}
	if err := c.doJSON(ctx, "PUT", c.repoURL("/refs/"+url.PathEscape(name)), req, nil); err != nil {
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	return nil
}

// DeleteRef removes a branch ref on the remote. Pin refs cannot be deleted.
func (c *HTTPClient) DeleteRef(ctx context.Context, name string) error {
	if err := c.doJSON(ctx, "DELETE", c.repoURL("/refs/"+url.PathEscape(name)), nil, nil); err != nil {
		return fmt.Errorf("delete ref %s: %w", name, err)
	}
	return nil
}

// EnsurePin guarantees the permanent ref "commits/<id>" exists on the remote.
func (c *HTTPClient) EnsurePin(ctx context.Context, commitID string) (bool, error) {
	var resp PinResponse
	if err := c.doJSON(ctx, "PUT", c.repoURL("/pins/"+commitID), nil, &resp); err != nil {
		return false, fmt.Errorf("ensure pin %s: %w", commitID, err)
	}
	return resp.Created, nil
}

// GetRepoInfo returns summary info about the remote repository.
func (c *HTTPClient) GetRepoInfo(ctx context.Context) (*RepoInfo, error) {
	var info RepoInfo
	if err := c.doJSON(ctx, "GET", c.repoURL("/info"), nil, &info); err != nil {
		return nil, fmt.Errorf("get repo info: %w", err)
	}
	return &info, nil
}

// RemoteError represents a structured error from the server.
type RemoteError struct {
	Code    string
	Message string
	Status  int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%d): %s — %s", e.Status, e.Code, e.Message)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return &RemoteError{
			Code:    "unknown",
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}

	return &RemoteError{
		Code:    errResp.Error,
		Message: errResp.Message,
		Status:  resp.StatusCode,
	}
}
