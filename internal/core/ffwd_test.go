package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFastForward(t *testing.T) {
	chain := []string{"c3", "c2", "c1"} // tip first

	tests := []struct {
		name      string
		remoteTip string
		force     bool
		wantErr   bool
	}{
		{name: "ref absent allows creation", remoteTip: ""},
		{name: "remote tip equals source", remoteTip: "c3"},
		{name: "remote tip is ancestor", remoteTip: "c1"},
		{name: "diverged remote rejected", remoteTip: "x9", wantErr: true},
		{name: "diverged remote allowed with force", remoteTip: "x9", force: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFastForward(tt.remoteTip, chain, tt.force)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNonFastForward)
				return
			}
			assert.NoError(t, err)
		})
	}
}
