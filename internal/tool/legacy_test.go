package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubprocessRunner_ScriptArrivesOnStdin(t *testing.T) {
	r := &SubprocessRunner{Command: []string{"sh", "-c", "cat"}}

	out, err := r.Run(context.Background(), "print('hello')", nil)

	require.NoError(t, err)
	assert.Equal(t, "print('hello')", out)
}

func TestSubprocessRunner_ArgsAppendedAsJSON(t *testing.T) {
	r := &SubprocessRunner{Command: []string{"sh", "-c", `echo "$0"`}}

	out, err := r.Run(context.Background(), "", map[string]any{"item_code": "W-100"})

	require.NoError(t, err)
	assert.Contains(t, out, `"item_code":"W-100"`)
}

func TestSubprocessRunner_TimeoutKillsScript(t *testing.T) {
	r := &SubprocessRunner{
		Command: []string{"sh", "-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	}

	_, err := r.Run(context.Background(), "", nil)

	assert.Error(t, err)
}

func TestSubprocessRunner_NoCommand_Errors(t *testing.T) {
	r := &SubprocessRunner{}

	_, err := r.Run(context.Background(), "code", nil)

	assert.Error(t, err)
}

func TestSubprocessRunner_StderrIncludedInError(t *testing.T) {
	r := &SubprocessRunner{Command: []string{"sh", "-c", "echo doom >&2; exit 3"}}

	_, err := r.Run(context.Background(), "", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "doom")
}
