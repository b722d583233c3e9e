package core

import "fmt"

// CheckFastForward decides whether moving a remote ref from remoteTip to the
// head of localChain is allowed. localChain is the full local ancestry of the
// push source, tip first. The check is pure; it never touches the remote.
//
// Creation (empty remoteTip) is always a fast-forward. Otherwise the remote
// tip must be an ancestor of (or equal to) the source, unless force is set.
func CheckFastForward(remoteTip string, localChain []string, force bool) error {
	if remoteTip == "" || force {
		return nil
	}

	for _, id := range localChain {
		if id == remoteTip {
			return nil
		}
	}

	tip := remoteTip
	if len(tip) > 8 {
		tip = tip[:8]
	}
	return fmt.Errorf("%w: remote tip %s is not in local history; pull first or use --force", ErrNonFastForward, tip)
}
