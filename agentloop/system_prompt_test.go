package agentloop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildSystemPromptIncludesDirective(t *testing.T) {
	got := BuildSystemPrompt(PromptContext{})
	if !strings.Contains(got, "autonomous coding agent") {
		t.Error("base directive missing")
	}
	if strings.Contains(got, "<project_files>") {
		t.Error("empty context must not add a project_files block")
	}
}

func TestBuildSystemPromptCapsFileTree(t *testing.T) {
	var tree []string
	for i := 0; i < 300; i++ {
		tree = append(tree, fmt.Sprintf("src/deep/nested/file%03d.ts", i))
	}
	got := BuildSystemPrompt(PromptContext{FileTree: tree})

	count := strings.Count(got, "src/deep/nested/file")
	if count > maxTreeEntries+10 {
		t.Errorf("tree must be capped near %d entries, found %d", maxTreeEntries, count)
	}
	if !strings.Contains(got, "more files not shown") {
		t.Error("cap must be announced")
	}
}

func TestBuildSystemPromptPrioritizesManifests(t *testing.T) {
	tree := []string{
		"src/deep/a/b/c/d/helper.ts",
		"package.json",
		"src/index.ts",
	}
	got := BuildSystemPrompt(PromptContext{FileTree: tree})

	pkgIdx := strings.Index(got, "package.json")
	deepIdx := strings.Index(got, "helper.ts")
	if pkgIdx == -1 || deepIdx == -1 {
		t.Fatal("both entries should be present under the cap")
	}
	if pkgIdx > deepIdx {
		t.Error("manifests must sort before deep paths")
	}
}

func TestBuildSystemPromptBoundsActiveContent(t *testing.T) {
	content := strings.Repeat("x", 50000)
	got := BuildSystemPrompt(PromptContext{
		ActivePath:    "src/app.ts",
		ActiveContent: content,
	})
	if len(got) > 20000 {
		t.Errorf("prompt with bounded content should stay small, got %d chars", len(got))
	}
	if !strings.Contains(got, "src/app.ts") {
		t.Error("open file path missing")
	}
	if !strings.Contains(got, "truncated from the middle") {
		t.Error("content truncation must be marked")
	}
}

func TestCollectFileTreeSkipsGuardedDirs(t *testing.T) {
	project, err := NewProjectContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	os.MkdirAll(filepath.Join(project.Root, "node_modules", "pkg"), 0o755)
	os.MkdirAll(filepath.Join(project.Root, "src"), 0o755)
	os.WriteFile(filepath.Join(project.Root, "src", "main.ts"), []byte("x"), 0o644)

	tree := CollectFileTree(project, 50)

	joined := strings.Join(tree, "\n")
	if strings.Contains(joined, "node_modules") {
		t.Error("guarded directories must not appear in the tree")
	}
	if !strings.Contains(joined, "src/main.ts") {
		t.Errorf("expected src/main.ts in tree, got %q", joined)
	}
}
