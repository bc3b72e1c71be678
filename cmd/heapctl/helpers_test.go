package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/fixheap/internal/config"
)

// resetFlags restores every global flag to its default.
func resetFlags(t *testing.T) {
	t.Helper()
	c := config.Default()
	cfg = &c
	verbose, quiet, jsonOut = false, false, false
	initCapacity = ""
	allocAlign, allocFill = 4, ""
	dumpPayload, dumpMax = false, 64
	stressCapacity, stressWorkers, stressOps, stressMaxSize, stressRate, stressSeed = "", 4, 1000, 256, 0, 1
	snapshotCodec = ""
}

// captureOutput captures stdout while running fn.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return string(<-done), fnErr
}

// newTestImage creates an image of the given capacity in a temp dir.
func newTestImage(t *testing.T, capacity string) string {
	t.Helper()
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "test.heap")
	initCapacity = capacity
	_, err := captureOutput(t, func() error { return runInit([]string{path}) })
	require.NoError(t, err)
	initCapacity = ""
	return path
}

// decodeJSON unmarshals command output into v.
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "output: %s", output)
}
