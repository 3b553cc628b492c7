package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["reconcile"])
	assert.True(t, names["slots"])
}

func TestCommandsRequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestSlotsRejectsUnknownTimezone(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"slots", "--timezone", "Mars/Olympus", "--database-url", "postgres://unused"})
	assert.Error(t, root.Execute())
}
