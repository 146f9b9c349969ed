package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorCommand(t *testing.T) {
	base := t.TempDir()
	stale := filepath.Join(base, "files", "a.png.tmp")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	cfgFile := filepath.Join(t.TempDir(), "uploader.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("uploads:\n  path: "+base+"\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgFile, "janitor"})
	require.NoError(t, cmd.Execute())

	assert.NoFileExists(t, stale)
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "uploader.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("records:\n  driver: sqlite\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgFile, "janitor"})
	require.Error(t, cmd.Execute())
}
