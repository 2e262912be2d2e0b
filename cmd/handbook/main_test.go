package main_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/handbook"
	main "github.com/fwojciec/handbook/cmd/handbook"
	"github.com/fwojciec/handbook/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_HelpFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"--help flag", []string{"--help"}},
		{"-h flag", []string{"-h"}},
		{"help command", []string{"help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := main.NewMain()
			m.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")

			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}

			err := m.Run(context.Background(), tt.args, stdout, stderr)

			require.NoError(t, err)
			assert.Contains(t, stdout.String(), "Usage: handbook")
			assert.Contains(t, stdout.String(), "Commands:")
			assert.Empty(t, stderr.String())
		})
	}
}

func TestRun_NoArgs(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")

	stdout := &bytes.Buffer{}
	err := m.Run(context.Background(), []string{}, stdout, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, stdout.String(), "Usage: handbook")
}

func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	m.Getenv = noEnv

	stderr := &bytes.Buffer{}
	err := m.Run(context.Background(), []string{"list"}, &bytes.Buffer{}, stderr)

	require.Error(t, err)
	assert.Equal(t, handbook.ENOTFOUND, handbook.ErrorCode(err))
	assert.Contains(t, stderr.String(), "HANDBOOK_CONFIG")
}

func TestRun_AskRequiresAPIKey(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.ConfigPath = writeConfig(t, "file")
	m.Getenv = noEnv

	stderr := &bytes.Buffer{}
	err := m.Run(context.Background(), []string{"ask", "engineering", "図書館は何時から？"}, &bytes.Buffer{}, stderr)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, stderr.String(), "https://aistudio.google.com/apikey")
}

func TestRun_ListWithFileSnapshots(t *testing.T) {
	t.Parallel()

	// Given a config with one faculty and a saved snapshot
	path := writeConfig(t, "file")
	snapshots := fs.NewSnapshotStore(filepath.Join(filepath.Dir(path), "snapshots"))
	require.NoError(t, snapshots.SaveSnapshot(context.Background(), "engineering", testCorpus(t)))

	m := main.NewMain()
	m.ConfigPath = path
	m.Getenv = noEnv

	// When I list handbooks
	stdout := &bytes.Buffer{}
	err := m.Run(context.Background(), []string{"list"}, stdout, &bytes.Buffer{})

	// Then the faculty and its snapshot size are shown
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "engineering  工学部  1 departments  2 pages")
}

func TestRun_ListWithSQLiteSnapshots(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "sqlite")

	m := main.NewMain()
	m.ConfigPath = path
	m.Getenv = noEnv

	stdout := &bytes.Buffer{}
	err := m.Run(context.Background(), []string{"list"}, stdout, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "engineering")
	assert.Contains(t, stdout.String(), "no snapshot")

	_, err = os.Stat(filepath.Join(filepath.Dir(path), "handbook.db"))
	assert.NoError(t, err, "database should be created next to the config")
}

func TestRun_VerboseFlagBeforeCommand(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.ConfigPath = writeConfig(t, "none")
	m.Getenv = noEnv

	stdout := &bytes.Buffer{}
	err := m.Run(context.Background(), []string{"--verbose", "list"}, stdout, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "snapshots disabled")
}
