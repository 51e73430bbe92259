package graphs

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed defs/*.yaml
var DefsFS embed.FS

//go:embed scripts/*.tengo
var ScriptsFS embed.FS

// Read returns the definition file name. A file in dir wins over the
// embedded copy so definitions can be edited without a rebuild.
func Read(dir, name string) ([]byte, error) {
	clean := cleanDefPath(name)
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(clean)))
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return data, err
		}
	}
	return DefsFS.ReadFile(path.Join("defs", clean))
}

// ReadScript returns a tengo script, looking in dir/scripts first.
func ReadScript(dir, name string) ([]byte, error) {
	clean := cleanScriptPath(name)
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(clean)))
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return data, err
		}
	}
	return ScriptsFS.ReadFile(clean)
}

// List returns the sorted names of the definitions in dir and the embedded
// set.
func List(dir string) ([]string, error) {
	seen := map[string]bool{}
	entries, err := fs.ReadDir(DefsFS, "defs")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		seen[e.Name()] = true
	}
	if dir != "" {
		disk, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		for _, e := range disk {
			if !e.IsDir() && isSpecFile(e.Name()) {
				seen[e.Name()] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func cleanDefPath(p string) string {
	s := filepath.ToSlash(p)
	if after, ok := strings.CutPrefix(s, "defs/"); ok {
		s = after
	}
	if path.Ext(s) == "" {
		s += ".yaml"
	}
	return s
}

func cleanScriptPath(p string) string {
	s := filepath.ToSlash(p)
	if after, ok := strings.CutPrefix(s, "scripts/"); ok {
		s = after
	}
	if path.Ext(s) == "" {
		s += ".tengo"
	}
	return "scripts/" + s
}
