package contextbuilder

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var jsImportRe = regexp.MustCompile(`(?:import\s+(?:[\w*{}\s,]+\s+from\s+)?|require\()\s*['"]([^'"]+)['"]`)
var pyImportRe = regexp.MustCompile(`(?m)^\s*(?:from\s+(\.[\w.]*)\s+import|import\s+(\.[\w.]*))`)

// localImports extracts up to every relative-import target referenced
// by content, written in the language implied by ext.
func localImports(ext, content string) []string {
	switch ext {
	case ".js", ".jsx", ".ts", ".tsx":
		var out []string
		for _, m := range jsImportRe.FindAllStringSubmatch(content, -1) {
			spec := m[1]
			if strings.HasPrefix(spec, ".") {
				out = append(out, spec)
			}
		}
		return out
	case ".py":
		var out []string
		for _, m := range pyImportRe.FindAllStringSubmatch(content, -1) {
			spec := m[1]
			if spec == "" {
				spec = m[2]
			}
			if spec != "" {
				out = append(out, strings.ReplaceAll(strings.TrimPrefix(spec, "."), ".", "/"))
			}
		}
		return out
	default:
		return nil
	}
}

// resolveImport turns an import specifier relative to fromPath (itself
// relative to root) into a root-relative file path that exists on
// disk, trying direct extensions then index/__init__ conventions.
// Returns "" if nothing resolves.
func resolveImport(root, fromPath, spec string) string {
	base := filepath.Join(filepath.Dir(fromPath), filepath.FromSlash(spec))

	candidates := []string{base}
	for ext := range sourceExtensions {
		candidates = append(candidates, base+ext)
	}
	for ext := range sourceExtensions {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}
	candidates = append(candidates, filepath.Join(base, "__init__.py"))

	for _, c := range candidates {
		if info, err := os.Stat(filepath.Join(root, c)); err == nil && !info.IsDir() {
			return filepath.ToSlash(c)
		}
	}
	return ""
}
