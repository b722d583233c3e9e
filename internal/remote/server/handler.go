package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kilupskalvis/metavc/internal/remote"
	"github.com/kilupskalvis/metavc/internal/remote/metastore"
)

// RepoOpener returns the MetaStore for a given repository name. Names may be
// nested paths like "meta/lib".
type RepoOpener interface {
	Open(name string) (metastore.MetaStore, error)
}

// ServerConfig holds configurable limits for the server.
type ServerConfig struct {
	MaxRequestBody int64  // bytes, for JSON endpoints
	AuthToken      string // shared bearer token; empty disables auth
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody: 64 * 1024 * 1024, // 64MB
	}
}

// Handler creates the HTTP handler with all routes and middleware.
func Handler(repos RepoOpener, cfg *ServerConfig, logger *slog.Logger) http.Handler {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleHealthz)

	// Negotiation
	mux.Handle("POST /api/v1/repos/{repo}/negotiate/push", makeRepoHandler(repos, cfg, handleNegotiatePush))
	mux.Handle("POST /api/v1/repos/{repo}/commits/have", makeRepoHandler(repos, cfg, handleHaveCommits))

	// Commits
	mux.Handle("GET /api/v1/repos/{repo}/commits/{id}/bundle", makeRepoHandler(repos, cfg, handleGetCommitBundle))
	mux.Handle("POST /api/v1/repos/{repo}/commits", makeRepoHandler(repos, cfg, handlePostCommitBundle))

	// Refs and pins
	mux.Handle("GET /api/v1/repos/{repo}/refs", makeRepoHandler(repos, cfg, handleListRefs))
	mux.Handle("GET /api/v1/repos/{repo}/refs/{name...}", makeRepoHandler(repos, cfg, handleGetRef))
	mux.Handle("PUT /api/v1/repos/{repo}/refs/{name...}", makeRepoHandler(repos, cfg, handleUpdateRef))
	mux.Handle("DELETE /api/v1/repos/{repo}/refs/{name...}", makeRepoHandler(repos, cfg, handleDeleteRef))
	mux.Handle("PUT /api/v1/repos/{repo}/pins/{id}", makeRepoHandler(repos, cfg, handleEnsurePin))

	// Info
	mux.Handle("GET /api/v1/repos/{repo}/info", makeRepoHandler(repos, cfg, handleRepoInfo))

	// Apply global middleware; the first in the list runs outermost.
	return applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		requestIDMiddleware,
		authMiddleware(cfg.AuthToken),
	)
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type repoHandlerFunc func(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, cfg *ServerConfig)

// makeRepoHandler resolves the repository and calls the handler with its MetaStore.
func makeRepoHandler(repos RepoOpener, cfg *ServerConfig, fn repoHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repoName := r.PathValue("repo")
		if repoName == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "bad_request",
				"message": "missing repository name in path",
			})
			return
		}

		meta, err := repos.Open(repoName)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "not_found",
				"message": fmt.Sprintf("repository '%s' not found", repoName),
			})
			return
		}
		fn(w, r, meta, cfg)
	}
}

// --- Negotiate Handlers ---

func handleNegotiatePush(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, cfg *ServerConfig) {
	var req remote.NegotiatePushRequest
	if err := readJSON(r, cfg.MaxRequestBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}

	if req.Ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "ref is required"})
		return
	}

	// Find the current value of the target ref
	var remoteTip string
	ref, err := meta.GetRef(r.Context(), req.Ref)
	if err != nil && !errors.Is(err, metastore.ErrNotFound) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}
	if ref != nil {
		remoteTip = ref.CommitID
	}

	// Find missing commits
	var missing []string
	for _, commitID := range req.Commits {
		has, err := meta.HasCommit(r.Context(), commitID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
			return
		}
		if !has {
			missing = append(missing, commitID)
		}
	}

	writeJSON(w, http.StatusOK, &remote.NegotiatePushResponse{
		MissingCommits: missing,
		RemoteTip:      remoteTip,
	})
}

func handleHaveCommits(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, cfg *ServerConfig) {
	var req remote.HaveCommitsRequest
	if err := readJSON(r, cfg.MaxRequestBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}

	resp := &remote.HaveCommitsResponse{}
	for _, id := range req.IDs {
		has, err := meta.HasCommit(r.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
			return
		}
		if has {
			resp.Have = append(resp.Have, id)
		} else {
			resp.Missing = append(resp.Missing, id)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Commit Handlers ---

func handlePostCommitBundle(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, cfg *ServerConfig) {
	var bundle remote.CommitBundle
	if err := readJSON(r, cfg.MaxRequestBody, &bundle); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}

	if bundle.Commit == nil || bundle.Commit.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "commit is required"})
		return
	}

	if err := meta.InsertCommitBundle(r.Context(), &bundle); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func handleGetCommitBundle(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, _ *ServerConfig) {
	id := r.PathValue("id")

	bundle, err := meta.GetCommitBundle(r.Context(), id)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "commit not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

// --- Ref Handlers ---

func handleListRefs(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, _ *ServerConfig) {
	refs, err := meta.ListRefs(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func handleGetRef(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, _ *ServerConfig) {
	name := r.PathValue("name")

	ref, err := meta.GetRef(r.Context(), name)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "ref not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

func handleUpdateRef(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, cfg *ServerConfig) {
	name := r.PathValue("name")

	var req remote.RefUpdateRequest
	if err := readJSON(r, cfg.MaxRequestBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}

	if req.CommitID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "commit_id is required"})
		return
	}

	err := meta.UpdateRefCAS(r.Context(), name, req.CommitID, req.Expected)
	if err != nil {
		switch {
		case errors.Is(err, metastore.ErrConflict):
			ref, _ := meta.GetRef(r.Context(), name)
			currentTip := ""
			if ref != nil {
				currentTip = ref.CommitID
			}
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":   "push_rejected",
				"message": fmt.Sprintf("remote ref '%s' has diverged — expected tip %s, got %s", name, req.Expected, currentTip),
				"detail":  map[string]string{"remote_tip": currentTip},
			})
		case errors.Is(err, metastore.ErrImmutable):
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error":   "immutable_ref",
				"message": fmt.Sprintf("ref '%s' is permanent and cannot be moved", name),
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func handleDeleteRef(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, _ *ServerConfig) {
	name := r.PathValue("name")

	err := meta.DeleteRef(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, metastore.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "ref not found"})
		case errors.Is(err, metastore.ErrImmutable):
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error":   "immutable_ref",
				"message": fmt.Sprintf("ref '%s' is permanent and cannot be deleted", name),
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func handleEnsurePin(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, _ *ServerConfig) {
	id := r.PathValue("id")

	created, err := meta.EnsurePin(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, metastore.ErrNotFound):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "unknown_commit",
				"message": fmt.Sprintf("commit %s must be transferred before pinning", id),
			})
		case errors.Is(err, metastore.ErrConflict):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":   "pin_conflict",
				"message": err.Error(),
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, &remote.PinResponse{Created: created})
}

// --- Info Handlers ---

func handleRepoInfo(w http.ResponseWriter, r *http.Request, meta metastore.MetaStore, _ *ServerConfig) {
	refs, err := meta.ListRefs(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}

	pins, err := meta.GetPinCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}

	commits, err := meta.GetCommitCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, &remote.RepoInfo{
		RefCount:    len(refs) - pins,
		PinCount:    pins,
		CommitCount: commits,
	})
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
