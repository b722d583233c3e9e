package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a RemoteClient with automatic retry on transient errors.
type RetryClient struct {
	inner  RemoteClient
	config *RetryConfig
}

// NewRetryClient creates a RetryClient that wraps the given RemoteClient.
func NewRetryClient(inner RemoteClient, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status >= 500 || re.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // network errors are transient
}

// backoff computes the delay for the given attempt with jitter.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry executes fn with retry logic. Only retries transient errors.
func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rc.config.MaxRetries {
			d := rc.backoff(attempt)
			if err := sleep(ctx, d); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

// --- Delegate all RemoteClient methods through retry logic ---

func (rc *RetryClient) NegotiatePush(ctx context.Context, ref string, commitIDs []string) (resp *NegotiatePushResponse, err error) {
	err = rc.retry(ctx, "negotiate push", func() error {
		resp, err = rc.inner.NegotiatePush(ctx, ref, commitIDs)
		return err
	})
	return
}

func (rc *RetryClient) HaveCommits(ctx context.Context, ids []string) (resp *HaveCommitsResponse, err error) {
	err = rc.retry(ctx, "have commits", func() error {
		resp, err = rc.inner.HaveCommits(ctx, ids)
		return err
	})
	return
}

func (rc *RetryClient) UploadCommitBundle(ctx context.Context, bundle *CommitBundle) error {
	return rc.retry(ctx, "upload commit bundle", func() error {
		return rc.inner.UploadCommitBundle(ctx, bundle)
	})
}

func (rc *RetryClient) DownloadCommitBundle(ctx context.Context, commitID string) (bundle *CommitBundle, err error) {
	err = rc.retry(ctx, "download commit bundle", func() error {
		bundle, err = rc.inner.DownloadCommitBundle(ctx, commitID)
		return err
	})
	return
}

func (rc *RetryClient) ListRefs(ctx context.Context) (refs []*models.Ref, err error) {
	err = rc.retry(ctx, "list refs", func() error {
		refs, err = rc.inner.ListRefs(ctx)
		return err
	})
	return
}

func (rc *RetryClient) GetRef(ctx context.Context, name string) (ref *models.Ref, err error) {
	err = rc.retry(ctx, "get ref", func() error {
		ref, err = rc.inner.GetRef(ctx, name)
		return err
	})
	return
}

// UpdateRef is not retried: a CAS conflict must surface to the caller so the
// whole push can be re-run from the top against fresh remote state.
func (rc *RetryClient) UpdateRef(ctx context.Context, name, newTip, expectedTip string) error {
	return rc.inner.UpdateRef(ctx, name, newTip, expectedTip)
}

func (rc *RetryClient) DeleteRef(ctx context.Context, name string) error {
	return rc.retry(ctx, "delete ref", func() error {
		return rc.inner.DeleteRef(ctx, name)
	})
}

func (rc *RetryClient) EnsurePin(ctx context.Context, commitID string) (created bool, err error) {
	err = rc.retry(ctx, "ensure pin", func() error {
		created, err = rc.inner.EnsurePin(ctx, commitID)
		return err
	})
	return
}

func (rc *RetryClient) GetRepoInfo(ctx context.Context) (info *RepoInfo, err error) {
	err = rc.retry(ctx, "get repo info", func() error {
		info, err = rc.inner.GetRepoInfo(ctx)
		return err
	})
	return
}
