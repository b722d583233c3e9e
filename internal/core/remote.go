// Package core contains the business logic for metavc operations.
package core

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/store"
)

// AddRemote validates and stores a new remote configuration.
func AddRemote(st *store.Store, name, rawURL string) error {
	if err := validateRemoteName(name); err != nil {
		return err
	}

	if err := validateRemoteURL(rawURL); err != nil {
		return err
	}

	return st.AddRemote(name, rawURL)
}

// RemoveRemote removes a remote and all its associated data.
func RemoveRemote(st *store.Store, name string) error {
	return st.RemoveRemote(name)
}

// ListRemotes returns all configured remotes.
func ListRemotes(st *store.Store) ([]*models.Remote, error) {
	remotes, err := st.ListRemotes()
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}
	return remotes, nil
}

// GetRemote returns a single remote by name.
func GetRemote(st *store.Store, name string) (*models.Remote, error) {
	remote, err := st.GetRemote(name)
	if err != nil {
		return nil, fmt.Errorf("get remote: %w", err)
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: remote '%s' is not configured", ErrUnresolvableRemote, name)
	}
	return remote, nil
}

// SetRemoteToken stores an authentication token for a remote.
// If token is empty, deletes the stored token.
func SetRemoteToken(st *store.Store, remoteName, token string) error {
	remote, err := st.GetRemote(remoteName)
	if err != nil {
		return fmt.Errorf("get remote: %w", err)
	}
	if remote == nil {
		return fmt.Errorf("remote '%s' does not exist", remoteName)
	}

	if token == "" {
		return st.DeleteRemoteToken(remoteName)
	}

	return st.SetRemoteToken(remoteName, token)
}

// sanitizeEnvName replaces non-alphanumeric characters with underscores.
var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// GetRemoteToken retrieves the token for a remote. It checks:
// 1. Per-remote env var METAVC_REMOTE_TOKEN_<UPPER_NAME>
// 2. Global env var METAVC_REMOTE_TOKEN
// 3. Stored token
func GetRemoteToken(st *store.Store, remoteName string) (string, error) {
	// Per-remote environment variable takes highest precedence
	sanitized := nonAlphanumeric.ReplaceAllString(strings.ToUpper(remoteName), "_")
	if envToken := os.Getenv("METAVC_REMOTE_TOKEN_" + sanitized); envToken != "" {
		return envToken, nil
	}

	// Global environment variable
	if envToken := os.Getenv("METAVC_REMOTE_TOKEN"); envToken != "" {
		return envToken, nil
	}

	return st.GetRemoteToken(remoteName)
}

// SetRemoteURL updates the URL of an existing remote.
func SetRemoteURL(st *store.Store, name, rawURL string) error {
	if err := validateRemoteURL(rawURL); err != nil {
		return err
	}
	return st.UpdateRemoteURL(name, rawURL)
}

// ResolveRemoteName picks the remote to push to when none was named: the
// configured default, or the sole configured remote.
func ResolveRemoteName(st *store.Store, name, configuredDefault string) (string, error) {
	if name != "" {
		return name, nil
	}
	if configuredDefault != "" {
		return configuredDefault, nil
	}

	remotes, err := st.ListRemotes()
	if err != nil {
		return "", fmt.Errorf("list remotes: %w", err)
	}
	switch len(remotes) {
	case 0:
		return "", fmt.Errorf("%w: no remotes configured — add one with 'metavc remote add'", ErrUnresolvableRemote)
	case 1:
		return remotes[0].Name, nil
	default:
		return "", fmt.Errorf("multiple remotes configured — specify which with 'metavc push <remote>'")
	}
}

// validateRemoteName checks that a remote name is valid.
func validateRemoteName(name string) error {
	if name == "" {
		return fmt.Errorf("remote name cannot be empty")
	}

	if strings.ContainsAny(name, " \t\n:/\\") {
		return fmt.Errorf("remote name '%s' contains invalid characters", name)
	}

	// Prevent names that conflict with built-in refs
	reserved := []string{"HEAD", "MERGE_HEAD", "FETCH_HEAD"}
	for _, r := range reserved {
		if strings.EqualFold(name, r) {
			return fmt.Errorf("remote name '%s' is reserved", name)
		}
	}

	return nil
}

// validateRemoteURL checks that a remote URL is syntactically valid.
func validateRemoteURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("remote URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid remote URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("remote URL must use http or https, got '%s'", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("remote URL must include a host")
	}

	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("remote URL must include a repository path (e.g., https://host/myrepo)")
	}

	return nil
}
