package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "service/bad.go", `package service

func sweep() {
	go func() {}()
}
`)
	writeFile(t, root, "service/inline.go", `package service

func serve() {
	go func() {}() //nolint:naked-goroutine // accept loop
}
`)
	writeFile(t, root, "service/doc.go", `package service

// loop polls forever.
// nolint:naked-goroutine // ticker loop
func loop() {
	go func() {}()
}
`)
	writeFile(t, root, "service/file.go", `// nolint:naked-goroutine
package service

func other() {
	go func() {}()
}
`)
	writeFile(t, root, "service/bad_test.go", `package service

func helper() {
	go func() {}()
}
`)
	writeFile(t, root, "pkg/worker/pool.go", `package worker

func run() {
	go func() {}()
}
`)

	findings, err := scan(root)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Contains(t, findings[0], filepath.Join("service", "bad.go")+":4:")
}

func TestScan_RepositoryIsClean(t *testing.T) {
	findings, err := scan(filepath.Join("..", "..", "internal"))
	require.NoError(t, err)
	require.Empty(t, findings)
}
