// Package workspace resolves working directories against a configured
// project root. Every command batch runs inside a Workspace, and a Workspace
// is always a descendant of (or equal to) the root — directory traversal out
// of the root fails before anything executes.
//
// The root is explicit configuration passed in at construction. Nothing in
// this package reads process-global state.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidWorkspace is returned when a requested directory escapes the
// project root or cannot be created inside it.
var ErrInvalidWorkspace = errors.New("invalid workspace")

// Workspace is a resolved, existing directory under the project root.
// Request-scoped: nothing is persisted beyond the filesystem state it names.
type Workspace struct {
	Path string
}

// Resolver validates and materializes workspaces under a single root.
type Resolver struct {
	root string

	mu      sync.Mutex
	created map[string]bool // Directories already ensured this process.
}

// NewResolver creates a Resolver for the given project root, creating the
// root directory if it does not exist.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root %q: %w", root, err)
	}
	r := &Resolver{
		root:    abs,
		created: make(map[string]bool),
	}
	if err := r.ensureDir(abs); err != nil {
		return nil, fmt.Errorf("creating project root: %w", err)
	}
	return r, nil
}

// Root returns the absolute project root path.
func (r *Resolver) Root() string { return r.root }

// Resolve validates requested against the root and returns the Workspace.
// Empty requested = the root itself. Relative paths are joined to the root.
// The directory (and parents) are created when absent. Resolution is
// idempotent: the same request yields the same path while the filesystem is
// unchanged.
func (r *Resolver) Resolve(requested string) (*Workspace, error) {
	target := r.root
	if requested != "" {
		if filepath.IsAbs(requested) {
			target = filepath.Clean(requested)
		} else {
			target = filepath.Join(r.root, requested)
		}
	}

	if !r.contains(target) {
		return nil, fmt.Errorf("%w: %q escapes project root %s", ErrInvalidWorkspace, requested, r.root)
	}

	if err := r.ensureDir(target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkspace, err)
	}

	return &Workspace{Path: target}, nil
}

// ListProjects returns the sorted immediate child directories of the root.
func (r *Resolver) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("reading project root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Status reports whether the root currently resolves and is writable.
type Status struct {
	Root      string `json:"workspace_root"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Check probes the root: it must exist, be a directory, and accept a write.
func (r *Resolver) Check(_ context.Context) Status {
	st := Status{Root: r.root}

	info, err := os.Stat(r.root)
	if err != nil || !info.IsDir() {
		st.Error = fmt.Sprintf("project root not reachable: %v", err)
		return st
	}

	// Writability probe: create and remove a scratch file.
	probe, err := os.CreateTemp(r.root, ".probe-*")
	if err != nil {
		st.Error = fmt.Sprintf("project root not writable: %v", err)
		return st
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	st.Reachable = true
	return st
}

// contains reports whether path is the root or a descendant of it.
func (r *Resolver) contains(path string) bool {
	return path == r.root || strings.HasPrefix(path, r.root+string(filepath.Separator))
}

// ensureDir creates a directory if needed, caching successes to avoid
// redundant stat/mkdir calls on hot paths.
func (r *Resolver) ensureDir(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.created[path] {
		return nil
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	r.created[path] = true
	return nil
}
