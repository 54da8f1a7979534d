// check-goroutines enforces the worker pool rule: no naked `go` statements
// in non-test code under internal/. Background work goes through
// worker.Pools; long-lived loops carry a nolint:naked-goroutine marker.
//
// Usage: go run ./cmd/check-goroutines [root]
package main

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const nolintTag = "nolint:naked-goroutine"

// exemptPaths may spawn goroutines freely. Matched as slash-separated
// prefixes relative to root.
var exemptPaths = []string{
	"pkg/worker",
}

func main() {
	root := "internal"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		fmt.Printf("[naked-goroutine] SKIP: %s not present\n", root)
		return
	}

	findings, err := scan(root)
	if err != nil {
		fmt.Printf("[naked-goroutine] FAIL: walk %s: %v\n", root, err)
		os.Exit(1)
	}
	if len(findings) > 0 {
		fmt.Println("[naked-goroutine] FAIL: naked goroutines found")
		for _, f := range findings {
			fmt.Println(f)
		}
		os.Exit(1)
	}
	fmt.Println("[naked-goroutine] OK")
}

// scan returns one "path:line: message" entry per unsuppressed go statement.
func scan(root string) ([]string, error) {
	var findings []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		if isExempt(root, path) || hasFileNolint(path) {
			return nil
		}
		found, err := scanFile(path)
		if err != nil {
			return err
		}
		findings = append(findings, found...)
		return nil
	})
	return findings, err
}

func isExempt(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, exempt := range exemptPaths {
		if rel == exempt || strings.HasPrefix(rel, exempt+"/") {
			return true
		}
	}
	return false
}

type lineRange struct{ start, end int }

func scanFile(path string) ([]string, error) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// A marker in a function's doc covers its whole body; an inline marker
	// covers its own line and the next.
	var suppressed []lineRange
	for _, decl := range node.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Doc == nil {
			continue
		}
		for _, c := range fn.Doc.List {
			if strings.Contains(c.Text, nolintTag) {
				suppressed = append(suppressed, lineRange{
					start: fset.Position(fn.Body.Pos()).Line,
					end:   fset.Position(fn.Body.End()).Line,
				})
			}
		}
	}
	for _, cg := range node.Comments {
		for _, c := range cg.List {
			if strings.Contains(c.Text, nolintTag) {
				line := fset.Position(c.Pos()).Line
				suppressed = append(suppressed, lineRange{line, line + 1})
			}
		}
	}

	var findings []string
	ast.Inspect(node, func(n ast.Node) bool {
		stmt, ok := n.(*ast.GoStmt)
		if !ok {
			return true
		}
		line := fset.Position(stmt.Pos()).Line
		for _, r := range suppressed {
			if line >= r.start && line <= r.end {
				return true
			}
		}
		findings = append(findings, fmt.Sprintf(
			"%s:%d: naked goroutine is forbidden; submit to a worker pool (pools.SubmitDetached)",
			path, line,
		))
		return true
	})
	return findings, nil
}

// hasFileNolint scans the first 20 lines of a file for a file-level marker.
func hasFileNolint(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 20 && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), nolintTag) {
			return true
		}
	}
	return false
}
