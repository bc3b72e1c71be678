package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	resetFlags(t)

	out, err := captureOutput(t, runVersion)
	require.NoError(t, err)
	assert.Contains(t, out, "heapctl "+version)
	assert.Contains(t, out, "commit: "+commit)

	jsonOut = true
	out, err = captureOutput(t, runVersion)
	require.NoError(t, err)
	var info versionInfo
	decodeJSON(t, out, &info)
	assert.Equal(t, version, info.Version)
	assert.Equal(t, commit, info.Commit)
	assert.Equal(t, date, info.Built)
}
