package contextbuilder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Bundle is the deterministic, size-bounded repository snapshot handed
// to LLMRouter.
type Bundle struct {
	Text      string
	Files     []string
	Truncated bool
}

// Builder constructs Bundles bounded by MaxChars (spec §4.3 step 5,
// configured as MAX_CONTEXT_SIZE).
type Builder struct {
	MaxChars int
}

// New returns a Builder bounded to maxChars.
func New(maxChars int) *Builder {
	return &Builder{MaxChars: maxChars}
}

// Build runs the full algorithm against the repository rooted at root
// for the given prompt.
func (b *Builder) Build(root, prompt string) Bundle {
	paths := b.discoverPaths(root, prompt)
	paths = expandImports(root, paths)

	sort.Strings(paths)
	paths = dedupe(paths)

	return b.assemble(root, paths)
}

func (b *Builder) discoverPaths(root, prompt string) []string {
	var matches []string
	seen := make(map[string]bool)

	for _, kw := range extractKeywords(prompt) {
		for _, p := range searchKeyword(root, kw) {
			if !seen[p] {
				seen[p] = true
				matches = append(matches, p)
			}
		}
	}

	if len(matches) == 0 {
		matches = probeFixedPaths(root, commonEntryPoints)
	}
	if len(matches) == 0 {
		matches = probeFixedPaths(root, readmeFallbacks)
	}
	return matches
}

// expandImports follows the local imports of each seed file, adding any
// resolved file not already present. Only a single hop is taken: the
// imports of files added here are not followed in turn.
func expandImports(root string, seeds []string) []string {
	seen := make(map[string]bool, len(seeds))
	queue := make([]string, len(seeds))
	copy(queue, seeds)
	for _, p := range seeds {
		seen[p] = true
	}

	result := append([]string{}, seeds...)

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		content, err := os.ReadFile(filepath.Join(root, path))
		if err != nil {
			continue
		}
		for _, spec := range localImports(filepath.Ext(path), string(content)) {
			resolved := resolveImport(root, path, spec)
			if resolved == "" || seen[resolved] {
				continue
			}
			seen[resolved] = true
			result = append(result, resolved)
		}
	}
	return result
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func (b *Builder) assemble(root string, paths []string) Bundle {
	var sb strings.Builder
	var included []string
	truncated := false

	for _, path := range paths {
		content, err := os.ReadFile(filepath.Join(root, path))
		if err != nil {
			continue
		}
		section := "--- " + path + " ---\n" + string(content) + "\n"

		if sb.Len()+len(section) > b.MaxChars {
			truncated = true
			break
		}
		sb.WriteString(section)
		included = append(included, path)
	}

	return Bundle{Text: sb.String(), Files: included, Truncated: truncated}
}
