package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesearch/ragex/internal/daemon"
	"github.com/codesearch/ragex/internal/ragexerr"
)

func TestNewRootCmd_HasAllSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"search", "index", "status", "init", "ls", "rm", "register", "unregister", "daemon", "version"}
	have := map[string]bool{}
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing subcommand %q", name)
	}
}

func TestBuildIndexArgs(t *testing.T) {
	args := buildIndexArgs([]string{"/ws"}, true, false, true)
	assert.Equal(t, []string{"/ws", "--force", "--stats"}, args)

	args = buildIndexArgs(nil, false, true, false)
	assert.Equal(t, []string{"--verbose"}, args)
}

func TestRespToError(t *testing.T) {
	ok := daemon.OK("fine", nil)
	assert.NoError(t, respToError(&ok))

	notFound := daemon.Fail(ragexerr.NotFound("no project"))
	err := respToError(&notFound)
	require.Error(t, err)
	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.code)

	plain := daemon.Response{Success: false, Error: "boom"}
	err = respToError(&plain)
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.code)
}

func TestInitCmd_WritesIgnoreFile(t *testing.T) {
	ws := t.TempDir()
	flags.workspace = ws
	t.Cleanup(func() { flags.workspace = "" })

	root := NewRootCmd()
	root.SetArgs([]string{"init", "--workspace", ws})
	require.NoError(t, root.Execute())
}
