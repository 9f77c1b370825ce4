package main

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "yashubustudio/custmapper"

// moduleImports returns every import reachable from the non-test sources of
// the module package in dir, following only packages inside the module.
func moduleImports(t *testing.T, root, dir string, seen map[string]bool) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(token.NewFileSet(), filepath.Join(dir, name), nil, parser.ImportsOnly)
		require.NoError(t, err)
		for _, spec := range f.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			require.NoError(t, err)
			if seen[path] {
				continue
			}
			seen[path] = true
			out = append(out, path)
			if rel, ok := strings.CutPrefix(path, modulePath+"/"); ok {
				out = append(out, moduleImports(t, root, filepath.Join(root, filepath.FromSlash(rel)), seen)...)
			}
		}
	}
	return out
}

func TestCommandDoesNotLinkGUI(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)

	imports := moduleImports(t, root, ".", map[string]bool{})

	assert.Contains(t, imports, modulePath+"/internal/app")
	for _, path := range imports {
		assert.False(t, strings.HasPrefix(path, "fyne.io/"), "command imports %s", path)
		assert.NotEqual(t, modulePath+"/internal/app/ui", path)
	}
}
