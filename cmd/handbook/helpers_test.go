package main_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/handbook"
	main "github.com/fwojciec/handbook/cmd/handbook"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *handbook.Catalog {
	t.Helper()
	c, err := handbook.NewCatalog([]handbook.Descriptor{
		{
			ID:     "engineering",
			Name:   "工学部",
			Source: "kougaku.pdf",
			Departments: []handbook.Department{
				{ID: "architecture", Name: "建築学科"},
			},
		},
		{ID: "letters", Name: "文学部", Source: "bungaku.pdf"},
	})
	require.NoError(t, err)
	return c
}

func testCorpus(t *testing.T) *handbook.Corpus {
	t.Helper()
	c, err := handbook.NewCorpus([]handbook.PageRecord{
		{Page: 1, Content: "目次\n第1章 履修"},
		{Page: 2, Content: "学生生活\n図書館は9時開館\n土日は休館"},
	})
	require.NoError(t, err)
	return c
}

func testDeps(t *testing.T) (*main.Dependencies, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &main.Dependencies{
		Ctx:     context.Background(),
		Stdout:  stdout,
		Stderr:  stderr,
		Catalog: testCatalog(t),
	}, stdout, stderr
}

// writeConfig writes a handbooks.yaml into a temp directory and returns
// its path. Sources are resolved relative to that directory.
func writeConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "handbooks.yaml")
	data := `institution: テスト大学
snapshots:
  backend: ` + backend + `
  dir: snapshots
  db_path: handbook.db
documents:
  - id: engineering
    name: 工学部
    source: kougaku.pdf
    departments:
      - id: architecture
        name: 建築学科
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func noEnv(string) string { return "" }
