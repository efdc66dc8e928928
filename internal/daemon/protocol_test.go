package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/internal/search"
)

func TestParseSearchArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    SearchArgs
		wantErr bool
	}{
		{
			name: "bare query",
			args: []string{"authenticate", "user"},
			want: SearchArgs{Query: "authenticate user", Mode: search.ModeAuto},
		},
		{
			name: "regex flag",
			args: []string{"--regex", "TODO.*implement"},
			want: SearchArgs{Query: "TODO.*implement", Mode: search.ModeRegex},
		},
		{
			name: "limit and min similarity",
			args: []string{"query", "--limit", "10", "--min-similarity", "0.4"},
			want: SearchArgs{Query: "query", Mode: search.ModeAuto, Limit: 10, MinSimilarity: 0.4},
		},
		{
			name: "json and index dir",
			args: []string{"--json", "--index-dir", "/tmp/idx", "needle"},
			want: SearchArgs{Query: "needle", Mode: search.ModeAuto, JSON: true, IndexDir: "/tmp/idx"},
		},
		{
			name:    "missing query",
			args:    []string{"--json"},
			wantErr: true,
		},
		{
			name:    "limit without value",
			args:    []string{"q", "--limit"},
			wantErr: true,
		},
		{
			name:    "bad limit value",
			args:    []string{"q", "--limit", "ten"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"q", "--explode"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSearchArgs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ragexerr.KindInvalidInput, ragexerr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIndexArgs(t *testing.T) {
	got, err := ParseIndexArgs([]string{"/ws", "--force", "--stats"})
	require.NoError(t, err)
	assert.Equal(t, IndexArgs{WorkspacePath: "/ws", Force: true, Stats: true}, got)

	got, err = ParseIndexArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, IndexArgs{}, got)

	_, err = ParseIndexArgs([]string{"/ws", "/other"})
	require.Error(t, err)

	_, err = ParseIndexArgs([]string{"--bogus"})
	require.Error(t, err)
}

func TestFailMapsExitCodes(t *testing.T) {
	resp := Fail(ragexerr.NotFound("no project matches"))
	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.Returncode)

	resp = Fail(ragexerr.InvalidInput("bad", nil))
	assert.Equal(t, 1, resp.Returncode)
}
