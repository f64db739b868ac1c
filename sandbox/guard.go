// Package sandbox restricts which filesystem paths and shell commands the
// agent's tools may touch. It is a policy layer, not an OS-level sandbox:
// path checks are containment checks against the project root, and command
// checks are a conservative textual filter over a deny list. A command that
// passes CheckCommand can still do harm; the guard only removes the obvious
// footguns before a process is ever spawned.
package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/shlex"
)

// Policy configures a Guard. The zero value is not usable; start from
// DefaultPolicy.
type Policy struct {
	// DeniedSegments are path segments that may not appear anywhere in a
	// resolved path (version-control metadata, dependency trees, secrets).
	DeniedSegments []string

	// WritePatterns is a doublestar allow-list matched against the base name
	// of a write target. Empty means any extension may be written.
	WritePatterns []string

	// DeniedSubstrings are case-insensitive fragments that reject a command
	// outright.
	DeniedSubstrings []string

	// DeniedPrograms rejects a command whose leading token (after shell-style
	// splitting) names one of these programs.
	DeniedPrograms []string
}

// DefaultPolicy returns the policy used by the IDE's agent runs.
func DefaultPolicy() Policy {
	return Policy{
		DeniedSegments: []string{
			".git", ".hg", ".svn",
			"node_modules", "vendor", "__pycache__",
			".env", ".env.local", ".env.production",
			".ssh", "id_rsa", "id_ed25519",
			"secrets", "credentials",
		},
		WritePatterns: []string{
			"*.ts", "*.tsx", "*.js", "*.jsx", "*.mjs", "*.cjs",
			"*.go", "*.py", "*.rb", "*.rs", "*.java", "*.kt",
			"*.c", "*.h", "*.cpp", "*.hpp",
			"*.css", "*.scss", "*.html", "*.svelte", "*.vue",
			"*.json", "*.yaml", "*.yml", "*.toml", "*.xml",
			"*.md", "*.txt", "*.sql", "*.sh", "*.proto",
			"*.gitignore", "*.lock", "Makefile", "Dockerfile",
		},
		DeniedSubstrings: []string{
			"rm -rf", "rm -fr", "rm -r -f", "rm --recursive --force",
			"sudo ", "su -", "doas ",
			"chmod ", "chown ", "chgrp ",
			"mkfs", "dd if=", "> /dev/",
			"curl | sh", "curl | bash", "wget | sh", "wget | bash",
			"| sudo", ":(){",
			"drop table", "drop database", "delete from", "truncate table",
			"shutdown", "reboot", "halt -",
		},
		DeniedPrograms: []string{
			"sudo", "su", "doas",
			"chmod", "chown", "chgrp",
			"mkfs", "dd", "shutdown", "reboot", "halt",
		},
	}
}

// Guard validates paths and commands against a project root and a Policy.
// All methods are pure predicates; the Guard never touches the filesystem.
type Guard struct {
	root   string
	policy Policy
}

// NewGuard creates a Guard scoped to the given project root. The root is
// made absolute and cleaned once at construction.
func NewGuard(root string, policy Policy) (*Guard, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("sandbox: project root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve project root: %w", err)
	}
	return &Guard{root: filepath.Clean(abs), policy: policy}, nil
}

// Root returns the absolute project root the guard is scoped to.
func (g *Guard) Root() string { return g.root }

// CheckPath resolves path against the project root and returns the absolute
// resolved path, or an error if the path escapes the root or contains a
// denied segment. Relative paths are interpreted as root-relative.
func (g *Guard) CheckPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathDenied)
	}

	var candidate string
	if filepath.IsAbs(path) {
		candidate = filepath.Clean(path)
	} else {
		candidate = filepath.Join(g.root, path)
	}

	rel, err := filepath.Rel(g.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes project root", ErrPathDenied, path)
	}

	for _, seg := range strings.Split(candidate, string(filepath.Separator)) {
		if g.segmentDenied(seg) {
			return "", fmt.Errorf("%w: %q contains protected segment %q", ErrPathDenied, path, seg)
		}
	}

	return candidate, nil
}

// CheckWritePath is CheckPath plus the write extension allow-list.
func (g *Guard) CheckWritePath(path string) (string, error) {
	resolved, err := g.CheckPath(path)
	if err != nil {
		return "", err
	}
	if len(g.policy.WritePatterns) == 0 {
		return resolved, nil
	}
	base := filepath.Base(resolved)
	for _, pattern := range g.policy.WritePatterns {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: file type of %q is not writable", ErrPathDenied, path)
}

// SkipSegment reports whether a directory entry should be skipped during a
// tree walk (list_files, file-tree context). It applies the same denied
// segment list as CheckPath.
func (g *Guard) SkipSegment(name string) bool {
	return g.segmentDenied(name)
}

func (g *Guard) segmentDenied(seg string) bool {
	if seg == "" {
		return false
	}
	lower := strings.ToLower(seg)
	for _, denied := range g.policy.DeniedSegments {
		if lower == denied {
			return true
		}
		if ok, _ := doublestar.Match(denied, lower); ok {
			return true
		}
	}
	return false
}

// CheckCommand rejects commands containing a denied substring
// (case-insensitive) or whose leading program is on the denied-program list.
// This is a textual filter: it runs before any process is spawned and errs
// toward rejecting.
func (g *Guard) CheckCommand(command string) error {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return fmt.Errorf("%w: empty command", ErrCommandDenied)
	}

	lower := strings.ToLower(trimmed)
	for _, denied := range g.policy.DeniedSubstrings {
		if strings.Contains(lower, denied) {
			return fmt.Errorf("%w: contains %q", ErrCommandDenied, denied)
		}
	}

	// Piping a remote script into a shell shows up in many spellings; catch
	// the general "fetch something and pipe it to sh/bash" shape.
	if (strings.Contains(lower, "curl") || strings.Contains(lower, "wget")) &&
		(strings.Contains(lower, "| sh") || strings.Contains(lower, "| bash") || strings.Contains(lower, "|sh") || strings.Contains(lower, "|bash")) {
		return fmt.Errorf("%w: piping remote content into a shell", ErrCommandDenied)
	}

	tokens, err := shlex.Split(trimmed)
	if err != nil {
		// Unparseable quoting; the substring filter already ran, let the
		// shell produce its own error.
		return nil
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty command", ErrCommandDenied)
	}
	program := strings.ToLower(filepath.Base(tokens[0]))
	for _, denied := range g.policy.DeniedPrograms {
		if program == denied {
			return fmt.Errorf("%w: program %q is not allowed", ErrCommandDenied, program)
		}
	}
	return nil
}
