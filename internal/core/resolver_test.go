package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSubmoduleURL(t *testing.T) {
	tests := []struct {
		name    string
		metaURL string
		rel     string
		want    string
		wantErr bool
	}{
		{
			name:    "simple join",
			metaURL: "http://example.com/meta",
			rel:     "lib",
			want:    "http://example.com/meta/lib",
		},
		{
			name:    "nested path",
			metaURL: "http://example.com/team/meta",
			rel:     "vendor/tls",
			want:    "http://example.com/team/meta/vendor/tls",
		},
		{
			name:    "parent segment",
			metaURL: "http://example.com/team/meta",
			rel:     "../shared-lib",
			want:    "http://example.com/team/shared-lib",
		},
		{
			name:    "self embedding",
			metaURL: "http://example.com/meta",
			rel:     ".",
			want:    "http://example.com/meta",
		},
		{
			name:    "absolute location used verbatim",
			metaURL: "http://example.com/meta",
			rel:     "https://other.example/lib",
			want:    "https://other.example/lib",
		},
		{
			name:    "trailing slash on meta URL",
			metaURL: "http://example.com/meta/",
			rel:     "lib",
			want:    "http://example.com/meta/lib",
		},
		{
			name:    "empty location",
			metaURL: "http://example.com/meta",
			rel:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSubmoduleURL(tt.metaURL, tt.rel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRemoteURL(t *testing.T) {
	st := newCoreTestStore(t)
	require.NoError(t, st.AddRemote("origin", "http://example.com/meta"))

	got, err := ResolveRemoteURL(st, "origin", "lib")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/meta/lib", got)

	got, err = ResolveRemoteURL(st, "origin", ".")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/meta", got)

	_, err = ResolveRemoteURL(st, "upstream", "lib")
	require.ErrorIs(t, err, ErrUnresolvableRemote)
}
