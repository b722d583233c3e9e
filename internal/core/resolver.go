package core

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/store"
)

// ResolveSubmoduleURL derives the remote URL of a nested repository from the
// URL of its enclosing repository. Submodules never contribute their own
// remote configuration; their destination is always a function of the
// enclosing URL and the relative location registered in the parent.
func ResolveSubmoduleURL(metaURL, relLocation string) (string, error) {
	if relLocation == "" {
		return "", fmt.Errorf("submodule location cannot be empty")
	}

	// Self-embedding: the nested repository is the enclosing one.
	if relLocation == models.SelfPath {
		return metaURL, nil
	}

	// An absolute URL in the parent's registry is used verbatim.
	if strings.Contains(relLocation, "://") {
		return relLocation, nil
	}

	u, err := url.Parse(metaURL)
	if err != nil {
		return "", fmt.Errorf("invalid remote URL '%s': %w", metaURL, err)
	}

	// path.Join cleans the result, so ".." segments in the relative location
	// resolve against the enclosing repository path.
	u.Path = path.Join(u.Path, relLocation)
	return u.String(), nil
}

// ResolveRemoteURL looks up the named remote of the enclosing repository and
// derives the URL for the nested repository at relLocation. Pass
// models.SelfPath to resolve the enclosing repository's own URL.
func ResolveRemoteURL(st *store.Store, remoteName, relLocation string) (string, error) {
	r, err := st.GetRemote(remoteName)
	if err != nil {
		return "", fmt.Errorf("get remote: %w", err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: remote '%s' is not configured", ErrUnresolvableRemote, remoteName)
	}

	return ResolveSubmoduleURL(r.URL, relLocation)
}
