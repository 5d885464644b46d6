package contextbuilder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// sourceExtensions bounds the lexical search and import-following to
// files plausibly written in a language the pipeline understands.
var sourceExtensions = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".py": true, ".go": true, ".java": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true,
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "dist": true, "build": true,
	".next": true, "coverage": true, "vendor": true,
}

// commonEntryPoints is probed, in order, when no keyword search hits
// anything. Paths are relative to the repo root.
var commonEntryPoints = []string{
	"index.js", "index.ts", "main.js", "main.ts", "app.js", "app.ts",
	"src/index.js", "src/index.ts", "src/main.js", "src/main.ts", "src/app.js", "src/app.ts",
	"apps/web/package.json", "apps/web/vite.config.js", "apps/web/vite.config.ts",
}

var readmeFallbacks = []string{"README.md", "Readme.md", "readme.md", "package.json"}

// searchKeyword walks root looking for files with a source extension
// whose content contains keyword (case-insensitive), returning paths
// relative to root.
func searchKeyword(root, keyword string) []string {
	var matches []string
	lowerKW := strings.ToLower(keyword)

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort walk, skip unreadable entries
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[filepath.Ext(path)] {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(string(content)), lowerKW) {
			rel, err := filepath.Rel(root, path)
			if err == nil {
				matches = append(matches, filepath.ToSlash(rel))
			}
		}
		return nil
	})

	sort.Strings(matches)
	return matches
}

// probeFixedPaths returns which of the given root-relative candidates
// exist on disk, in the order given.
func probeFixedPaths(root string, candidates []string) []string {
	var found []string
	for _, rel := range candidates {
		if _, err := os.Stat(filepath.Join(root, rel)); err == nil {
			found = append(found, rel)
		}
	}
	return found
}
