package core

import "errors"

// Sentinel errors for the failure classes a push can hit. Callers match them
// with errors.Is; every occurrence is wrapped with the ref, remote, or
// submodule context it happened in.
var (
	// ErrUnknownRef means the push source could not be resolved to a commit.
	ErrUnknownRef = errors.New("unknown ref")

	// ErrUnresolvableRemote means no remote URL could be derived, because the
	// enclosing repository has no remote configured under the given name.
	ErrUnresolvableRemote = errors.New("unresolvable remote")

	// ErrNonFastForward means the remote ref moved to a commit outside the
	// local history and force was not set. The remote is left untouched.
	ErrNonFastForward = errors.New("not a fast-forward")

	// ErrSubmoduleTransfer means a referenced submodule commit could not be
	// made reachable on its derived remote. The meta ref is never moved past
	// this failure.
	ErrSubmoduleTransfer = errors.New("submodule transfer failed")

	// ErrRefUpdate means the final ref update was rejected, typically because
	// another push moved the ref between negotiation and update.
	ErrRefUpdate = errors.New("ref update rejected")
)
