package diffvalidator

import (
	"strconv"
	"strings"
)

const diffGitPrefix = "diff --git "

// structuralValidate checks line-count bounds, confirms the text is one
// contiguous run of file blocks each with the headers a unified diff
// requires, and confirms every hunk-body line carries a valid leading
// marker. Returns the parsed blocks on success.
func structuralValidate(text string, maxDiffSize int) ([]fileBlock, *Outcome) {
	if !strings.HasSuffix(text, "\n") || strings.HasSuffix(text, "\n\n") {
		return nil, rejected("diff must end with exactly one newline")
	}

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	if len(lines) > maxDiffSize {
		return nil, rejected("diff exceeds maximum size of " + strconv.Itoa(maxDiffSize) + " lines")
	}
	if len(lines) < 3 {
		return nil, rejected("diff has fewer than 3 lines")
	}

	var blockStarts []int
	for i, line := range lines {
		if strings.HasPrefix(line, diffGitPrefix) {
			blockStarts = append(blockStarts, i)
		}
	}
	if len(blockStarts) == 0 || blockStarts[0] != 0 {
		return nil, rejected("diff body must begin with a diff --git header")
	}

	blocks := make([]fileBlock, 0, len(blockStarts))
	for i, start := range blockStarts {
		end := len(lines)
		if i+1 < len(blockStarts) {
			end = blockStarts[i+1]
		}
		block, outcome := parseBlock(lines[start], lines[start+1:end])
		if outcome != nil {
			return nil, outcome
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func parseBlock(header string, body []string) (fileBlock, *Outcome) {
	block := fileBlock{header: header, body: body}

	var sawSource, sawTarget, sawHunk bool
	inHunk := false

	for _, line := range body {
		switch {
		case strings.HasPrefix(line, "new file mode"):
			block.isNew = true
		case strings.HasPrefix(line, "deleted file mode"):
			block.isDel = true
		case strings.HasPrefix(line, "--- "):
			sawSource = true
			path := strings.TrimPrefix(line, "--- ")
			if path == "/dev/null" {
				block.devNull.source = true
				block.isNew = true
			} else {
				block.sourcePath = strings.TrimPrefix(path, "a/")
			}
			inHunk = false
		case strings.HasPrefix(line, "+++ "):
			sawTarget = true
			path := strings.TrimPrefix(line, "+++ ")
			if path == "/dev/null" {
				block.devNull.target = true
				block.isDel = true
			} else {
				block.targetPath = strings.TrimPrefix(path, "b/")
			}
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			sawHunk = true
			inHunk = true
		case inHunk && line != "":
			switch line[0] {
			case '+', '-', ' ', '\\':
				// valid hunk-body marker
			default:
				return fileBlock{}, rejected("invalid hunk line in " + header + ": " + line)
			}
		}
	}

	if !sawSource || !sawTarget {
		return fileBlock{}, rejected("file block missing --- / +++ headers: " + header)
	}
	if !sawHunk {
		return fileBlock{}, rejected("file block missing @@ hunk marker: " + header)
	}
	return block, nil
}
