package diffvalidator

import (
	"os"
	"path/filepath"
	"strings"
)

// deletionKeywords are scanned case-insensitively against the prompt
// before a deleted-file block is allowed through.
var deletionKeywords = []string{
	"delete", "remove", "drop", "eliminate", "get rid of", "take out", "rm ", "unlink",
}

// sanityCheck runs the worktree-aware pre-apply checks: rejects diffs
// that claim to create a file that already exists, delete a file the
// prompt never asked to remove, or replace a file's content to nothing
// when it was never there to begin with.
func sanityCheck(blocks []fileBlock, worktreeDir, prompt string) *Outcome {
	lowerPrompt := strings.ToLower(prompt)

	for _, b := range blocks {
		path := b.targetPath
		if path == "" {
			path = b.sourcePath
		}

		if b.isNew {
			if fileExists(worktreeDir, path) {
				return rejected("file already exists: " + path)
			}
		}

		if b.isDel {
			if !containsDeletionKeyword(lowerPrompt) {
				return rejected("diff deletes " + path + " but prompt contains no deletion keyword")
			}
		}

		if b.devNull.target && !fileExists(worktreeDir, b.sourcePath) {
			return rejected("diff targets /dev/null for a file that does not exist: " + b.sourcePath)
		}
	}
	return nil
}

func containsDeletionKeyword(lowerPrompt string) bool {
	for _, kw := range deletionKeywords {
		if strings.Contains(lowerPrompt, kw) {
			return true
		}
	}
	return false
}

func fileExists(worktreeDir, relPath string) bool {
	if relPath == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(worktreeDir, relPath))
	return err == nil
}
