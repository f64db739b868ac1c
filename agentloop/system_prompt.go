package agentloop

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// maxTreeEntries caps the file-tree listing injected into the prompt.
	maxTreeEntries = 100
	// maxActiveContentChars caps injected file content; the middle is
	// dropped past this so imports and recent edits both survive.
	maxActiveContentChars = 10000
)

const baseDirective = `You are an autonomous coding agent working inside a web IDE. You complete
the user's task by using the tools available to you, without asking for
permission between steps.

Rules:
- Use tools to inspect the project before making changes. Never guess at
  file contents you have not read.
- Prefer edit_file for small changes and write_file for new files or full
  rewrites. Read a file before editing it so the search text matches.
- Paths are relative to the project root. You cannot touch anything outside
  it.
- Tool failures are recoverable: read the error, correct the call, and try
  again.
- When the task is done, stop calling tools and summarize what you changed.

Workflow for a typical change:
1. list_files or search_code to locate the relevant code.
2. read_file on each file you intend to change.
3. edit_file / write_file to make the change.
4. run_command to build or test when the project has an obvious way to.`

// PromptContext carries the project context injected into the system
// prompt. All fields are optional; empty fields are omitted.
type PromptContext struct {
	// FileTree is a root-relative listing, already filtered and capped by
	// the caller (CollectFileTree does both).
	FileTree []string
	// ActivePath is the file open in the editor, if any.
	ActivePath string
	// ActiveContent is the open file's content; bounded during injection.
	ActiveContent string
}

// BuildSystemPrompt combines the fixed behavioral directive with
// size-bounded project context. Unbounded context is never injected: the
// tree is capped at maxTreeEntries and file content at
// maxActiveContentChars.
func BuildSystemPrompt(pc PromptContext) string {
	var sb strings.Builder
	sb.WriteString(baseDirective)

	if len(pc.FileTree) > 0 {
		tree := prioritizeTree(pc.FileTree, maxTreeEntries)
		sb.WriteString("\n\n<project_files>\n")
		sb.WriteString(strings.Join(tree, "\n"))
		if len(pc.FileTree) > len(tree) {
			fmt.Fprintf(&sb, "\n[... %d more files not shown ...]", len(pc.FileTree)-len(tree))
		}
		sb.WriteString("\n</project_files>")
	}

	if pc.ActivePath != "" && pc.ActiveContent != "" {
		sb.WriteString("\n\n<open_file path=\"" + pc.ActivePath + "\">\n")
		sb.WriteString(TruncateMiddle(pc.ActiveContent, maxActiveContentChars))
		sb.WriteString("\n</open_file>")
	}

	return sb.String()
}

// prioritizeTree orders paths so the entries a model needs first survive the
// cap: manifests and entry points, then shallow paths before deep ones.
func prioritizeTree(paths []string, max int) []string {
	scored := make([]string, len(paths))
	copy(scored, paths)
	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := treeScore(scored[i]), treeScore(scored[j])
		if si != sj {
			return si < sj
		}
		return scored[i] < scored[j]
	})
	if len(scored) > max {
		scored = scored[:max]
	}
	return scored
}

func treeScore(path string) int {
	base := strings.ToLower(filepath.Base(strings.TrimSuffix(path, "/")))
	switch base {
	case "package.json", "go.mod", "cargo.toml", "pyproject.toml", "makefile", "readme.md":
		return 0
	case "main.go", "index.ts", "index.js", "app.ts", "main.py":
		return 1
	}
	// Shallow paths before deep ones.
	return 2 + strings.Count(path, "/")
}

// CollectFileTree walks the project and returns root-relative paths,
// skipping guarded segments and capping at max entries. Directories carry a
// trailing slash.
func CollectFileTree(project ProjectContext, max int) []string {
	if max <= 0 {
		max = maxTreeEntries
	}
	var entries []string
	filepath.WalkDir(project.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == project.Root {
			return nil
		}
		if d.IsDir() && project.Guard.SkipSegment(d.Name()) {
			return filepath.SkipDir
		}
		if len(entries) >= max {
			return filepath.SkipAll
		}
		rel, err := filepath.Rel(project.Root, p)
		if err != nil {
			return nil
		}
		if d.IsDir() {
			rel += "/"
		}
		entries = append(entries, rel)
		return nil
	})
	sort.Strings(entries)
	return entries
}
