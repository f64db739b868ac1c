package agentloop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hatchpad/agentcore/sandbox"
)

// ProjectContext scopes tool execution to one project. It is passed
// explicitly into every execution so concurrent loops over different
// projects never share state.
type ProjectContext struct {
	Root  string
	Guard *sandbox.Guard
}

// NewProjectContext builds a ProjectContext with the default sandbox policy.
func NewProjectContext(root string) (ProjectContext, error) {
	guard, err := sandbox.NewGuard(root, sandbox.DefaultPolicy())
	if err != nil {
		return ProjectContext{}, err
	}
	return ProjectContext{Root: guard.Root(), Guard: guard}, nil
}

// ExecutorConfig bounds tool execution. Zero values take the defaults.
type ExecutorConfig struct {
	// MaxDeletedLines caps how many net lines one edit_file call may remove.
	MaxDeletedLines int
	// ListCap caps entries returned by list_files.
	ListCap int
	// SearchLineCap caps matching lines returned by search_code.
	SearchLineCap int
	// CommandTimeout is the wall-clock limit for run_command.
	CommandTimeout time.Duration
	// CommandOutputCap bounds combined stdout+stderr of run_command.
	CommandOutputCap int
}

// DefaultExecutorConfig returns the limits used by the IDE's agent runs.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxDeletedLines:  50,
		ListCap:          200,
		SearchLineCap:    50,
		CommandTimeout:   30 * time.Second,
		CommandOutputCap: 1 << 20, // 1MB
	}
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	def := DefaultExecutorConfig()
	if c.MaxDeletedLines <= 0 {
		c.MaxDeletedLines = def.MaxDeletedLines
	}
	if c.ListCap <= 0 {
		c.ListCap = def.ListCap
	}
	if c.SearchLineCap <= 0 {
		c.SearchLineCap = def.SearchLineCap
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.CommandOutputCap <= 0 {
		c.CommandOutputCap = def.CommandOutputCap
	}
	return c
}

// sourceExtensions scopes search_code to files worth searching.
var sourceExtensions = []string{
	"ts", "tsx", "js", "jsx", "mjs", "cjs",
	"go", "py", "rb", "rs", "java", "kt",
	"c", "h", "cpp", "hpp",
	"css", "scss", "html", "svelte", "vue",
	"json", "yaml", "yml", "toml",
	"md", "sql", "sh", "proto",
}

// Executor implements the tool surface. Every failure is a ToolResult
// value; Execute never returns a Go error.
type Executor struct {
	project ProjectContext
	config  ExecutorConfig
}

// NewExecutor creates an Executor for the given project.
func NewExecutor(project ProjectContext, config ExecutorConfig) *Executor {
	return &Executor{project: project, config: config.withDefaults()}
}

// Execute dispatches one tool call. The switch is exhaustive over ToolName;
// an unknown name is a failed result.
func (e *Executor) Execute(ctx context.Context, call ToolCall) ToolResult {
	switch call.Name {
	case ToolReadFile:
		return e.readFile(call)
	case ToolWriteFile:
		return e.writeFile(call)
	case ToolEditFile:
		return e.editFile(call)
	case ToolListFiles:
		return e.listFiles(call)
	case ToolSearchCode:
		return e.searchCode(ctx, call)
	case ToolRunCommand:
		return e.runCommand(ctx, call)
	default:
		return failureResult("unknown tool %q", call.Name)
	}
}

func (e *Executor) readFile(call ToolCall) ToolResult {
	path := call.Arg("path")
	resolved, err := e.project.Guard.CheckPath(path)
	if err != nil {
		return failureResult("%v", err)
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return failureResult("file not found: %s", path)
		}
		return failureResult("read %s: %v", path, err)
	}
	return successResult(string(content))
}

func (e *Executor) writeFile(call ToolCall) ToolResult {
	path := call.Arg("path")
	resolved, err := e.project.Guard.CheckWritePath(path)
	if err != nil {
		return failureResult("%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return failureResult("create parent directories for %s: %v", path, err)
	}
	if err := writeFileAtomic(resolved, []byte(call.Arg("content"))); err != nil {
		return failureResult("write %s: %v", path, err)
	}
	return successResult(fmt.Sprintf("Wrote %d bytes to %s", len(call.Arg("content")), path))
}

// writeFileAtomic writes via a temp file in the same directory plus rename,
// so a crashed write never leaves a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.New().String()[:8])
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (e *Executor) editFile(call ToolCall) ToolResult {
	path := call.Arg("path")
	search := call.Arg("search")
	replace := call.Arg("replace")

	if search == "" {
		return failureResult("edit_file requires a non-empty search string")
	}

	resolved, err := e.project.Guard.CheckWritePath(path)
	if err != nil {
		return failureResult("%v", err)
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return failureResult("file not found: %s", path)
		}
		return failureResult("read %s: %v", path, err)
	}
	content := string(raw)

	if !strings.Contains(content, search) {
		return failureResult("search text not found in %s; read the file and retry with the exact text", path)
	}

	deleted := strings.Count(search, "\n") - strings.Count(replace, "\n")
	if deleted > e.config.MaxDeletedLines {
		return failureResult("edit would delete %d lines, more than the allowed %d; split into smaller edits",
			deleted, e.config.MaxDeletedLines)
	}

	// First occurrence only. The tool description asks the model for a
	// unique search string; when it is not unique this keeps the edit
	// deterministic.
	updated := strings.Replace(content, search, replace, 1)
	if err := writeFileAtomic(resolved, []byte(updated)); err != nil {
		return failureResult("write %s: %v", path, err)
	}
	return successResult(fmt.Sprintf("Edited %s", path))
}

func (e *Executor) listFiles(call ToolCall) ToolResult {
	path := call.Arg("path")
	if path == "" {
		path = "."
	}
	resolved, err := e.project.Guard.CheckPath(path)
	if err != nil {
		return failureResult("%v", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return failureResult("directory not found: %s", path)
		}
		return failureResult("stat %s: %v", path, err)
	}
	if !info.IsDir() {
		return failureResult("%s is not a directory", path)
	}

	var entries []string
	capped := false
	walkErr := filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if p == resolved {
			return nil
		}
		if d.IsDir() && e.project.Guard.SkipSegment(d.Name()) {
			return filepath.SkipDir
		}
		if len(entries) >= e.config.ListCap {
			capped = true
			return filepath.SkipAll
		}
		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			return nil
		}
		if d.IsDir() {
			rel += "/"
		}
		entries = append(entries, rel)
		return nil
	})
	if walkErr != nil {
		return failureResult("list %s: %v", path, walkErr)
	}

	sort.Strings(entries)
	out := strings.Join(entries, "\n")
	if capped {
		out += fmt.Sprintf("\n[listing capped at %d entries; pass a narrower path]", e.config.ListCap)
	}
	if out == "" {
		out = "(empty directory)"
	}
	return successResult(out)
}

func (e *Executor) searchCode(ctx context.Context, call ToolCall) ToolResult {
	query := call.Arg("query")
	if query == "" {
		return failureResult("search_code requires a query")
	}

	out, err := e.runSearcher(ctx, query)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// rg and grep both exit 1 on zero matches.
			return successResult(fmt.Sprintf("No matches found for %q", query))
		}
		return failureResult("search failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) > e.config.SearchLineCap {
		lines = lines[:e.config.SearchLineCap]
		lines = append(lines, fmt.Sprintf("[results capped at %d lines; refine the query]", e.config.SearchLineCap))
	}
	return successResult(strings.Join(lines, "\n"))
}

// runSearcher prefers ripgrep and falls back to grep when it is absent.
func (e *Executor) runSearcher(ctx context.Context, query string) (string, error) {
	if rg, err := exec.LookPath("rg"); err == nil {
		args := []string{"--line-number", "--no-heading", "--color", "never"}
		for _, ext := range sourceExtensions {
			args = append(args, "-g", "*."+ext)
		}
		args = append(args, "--", query, ".")
		cmd := exec.CommandContext(ctx, rg, args...)
		cmd.Dir = e.project.Root
		out, err := cmd.Output()
		return string(out), err
	}

	args := []string{"-rn"}
	for _, ext := range sourceExtensions {
		args = append(args, "--include=*."+ext)
	}
	args = append(args, "--", query, ".")
	cmd := exec.CommandContext(ctx, "grep", args...)
	cmd.Dir = e.project.Root
	out, err := cmd.Output()
	return string(out), err
}

func (e *Executor) runCommand(ctx context.Context, call ToolCall) ToolResult {
	command := call.Arg("command")
	if err := e.project.Guard.CheckCommand(command); err != nil {
		return failureResult("%v", err)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.config.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = e.project.Root
	// Run in its own process group so a timeout kills the whole tree, not
	// just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var buf bytes.Buffer
	limited := &limitedWriter{w: &buf, remaining: e.config.CommandOutputCap}
	cmd.Stdout = limited
	cmd.Stderr = limited

	err := cmd.Run()
	output := buf.String()
	if limited.truncated {
		output += fmt.Sprintf("\n[output truncated at %d bytes]", e.config.CommandOutputCap)
	}

	switch {
	case cmdCtx.Err() == context.DeadlineExceeded:
		return failureResult("command timed out after %s\n%s", e.config.CommandTimeout, output)
	case ctx.Err() != nil:
		return failureResult("command cancelled\n%s", output)
	case err != nil:
		return failureResult("command failed: %v\n%s", err, output)
	}

	if output == "" {
		output = "(no output)"
	}
	return successResult(output)
}

// limitedWriter caps total bytes written, discarding the excess.
type limitedWriter struct {
	w         *bytes.Buffer
	remaining int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.remaining <= 0 {
		lw.truncated = true
		return n, nil
	}
	if n > lw.remaining {
		lw.w.Write(p[:lw.remaining])
		lw.remaining = 0
		lw.truncated = true
		return n, nil
	}
	lw.w.Write(p)
	lw.remaining -= n
	return n, nil
}
