// Package fixture builds expected repository states for verification and
// translates between the logical commit labels a scenario is written in and
// the physical content-addressed IDs a real repository produces.
package fixture

import (
	"maps"

	"github.com/kilupskalvis/metavc/internal/models"
)

// RepoState is the expected state of one repository: ref names mapped to the
// commits they point at, plus the states of nested repositories keyed by
// submodule path.
type RepoState struct {
	Refs       map[string]string
	Submodules map[string]*RepoState
}

// RemapPinRefs rewrites the commit ID embedded in pin ref names from logical
// labels to physical IDs, using reverse as the logical-to-physical mapping.
// Only names under the pin namespace are touched; the values refs point at
// and all other ref names pass through unchanged. Nested states are remapped
// recursively. The input is not modified.
func RemapPinRefs(expected map[string]*RepoState, reverse map[string]string) map[string]*RepoState {
	if expected == nil {
		return nil
	}

	out := make(map[string]*RepoState, len(expected))
	for name, state := range expected {
		out[name] = remapState(state, reverse)
	}
	return out
}

func remapState(state *RepoState, reverse map[string]string) *RepoState {
	if state == nil {
		return nil
	}

	remapped := &RepoState{}

	if state.Refs != nil {
		remapped.Refs = make(map[string]string, len(state.Refs))
		for name, target := range state.Refs {
			remapped.Refs[remapRefName(name, reverse)] = target
		}
	}

	remapped.Submodules = RemapPinRefs(state.Submodules, reverse)
	return remapped
}

// remapRefName translates one ref name. A pin ref whose embedded ID has no
// mapping keeps its logical name; anything outside the pin namespace is
// returned as is.
func remapRefName(name string, reverse map[string]string) string {
	logical, ok := models.ParsePinRef(name)
	if !ok {
		return name
	}
	physical, ok := reverse[logical]
	if !ok {
		return name
	}
	return models.PinRef(physical)
}

// Clone deep-copies a state tree, useful when a test mutates its expectation.
func (s *RepoState) Clone() *RepoState {
	if s == nil {
		return nil
	}
	c := &RepoState{}
	if s.Refs != nil {
		c.Refs = maps.Clone(s.Refs)
	}
	if s.Submodules != nil {
		c.Submodules = make(map[string]*RepoState, len(s.Submodules))
		for path, sub := range s.Submodules {
			c.Submodules[path] = sub.Clone()
		}
	}
	return c
}
