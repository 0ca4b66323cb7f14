package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNewResolver_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "projects")
	r, err := NewResolver(root)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	info, err := os.Stat(r.Root())
	if err != nil {
		t.Fatalf("root was not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("root is not a directory")
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	r, err := NewResolver(root)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	t.Run("empty resolves to root", func(t *testing.T) {
		ws, err := r.Resolve("")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if ws.Path != r.Root() {
			t.Errorf("path = %q, want root %q", ws.Path, r.Root())
		}
	})

	t.Run("relative joins root and creates dir", func(t *testing.T) {
		ws, err := r.Resolve("myproject")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := filepath.Join(r.Root(), "myproject")
		if ws.Path != want {
			t.Errorf("path = %q, want %q", ws.Path, want)
		}
		if _, err := os.Stat(ws.Path); err != nil {
			t.Errorf("directory was not created: %v", err)
		}
	})

	t.Run("nested relative", func(t *testing.T) {
		ws, err := r.Resolve("a/b/c")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if _, err := os.Stat(ws.Path); err != nil {
			t.Errorf("nested directory was not created: %v", err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := r.Resolve("repeat")
		if err != nil {
			t.Fatalf("first Resolve() error = %v", err)
		}
		second, err := r.Resolve("repeat")
		if err != nil {
			t.Fatalf("second Resolve() error = %v", err)
		}
		if first.Path != second.Path {
			t.Errorf("paths differ: %q vs %q", first.Path, second.Path)
		}
	})
}

func TestResolve_Escapes(t *testing.T) {
	r, err := NewResolver(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	for _, requested := range []string{
		"../outside",
		"../../etc",
		"a/../../b",
		"/etc/passwd",
		"/tmp",
	} {
		if _, err := r.Resolve(requested); !errors.Is(err, ErrInvalidWorkspace) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidWorkspace", requested, err)
		}
	}
}

func TestResolve_AbsoluteInsideRoot(t *testing.T) {
	r, err := NewResolver(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	inside := filepath.Join(r.Root(), "sub")
	ws, err := r.Resolve(inside)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", inside, err)
	}
	if ws.Path != inside {
		t.Errorf("path = %q, want %q", ws.Path, inside)
	}
}

func TestListProjects(t *testing.T) {
	r, err := NewResolver(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	for _, name := range []string{"zebra", "alpha", "mid"} {
		if _, err := r.Resolve(name); err != nil {
			t.Fatalf("Resolve(%q) error = %v", name, err)
		}
	}
	// Files are not projects.
	if err := os.WriteFile(filepath.Join(r.Root(), "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := r.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	want := []string{"alpha", "mid", "zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("projects = %v, want %v", got, want)
	}
}

func TestCheck(t *testing.T) {
	r, err := NewResolver(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	st := r.Check(context.Background())
	if !st.Reachable {
		t.Errorf("reachable = false, error = %q", st.Error)
	}
	if st.Root != r.Root() {
		t.Errorf("root = %q, want %q", st.Root, r.Root())
	}
}

func TestCheck_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	r, err := NewResolver(root)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}

	st := r.Check(context.Background())
	if st.Reachable {
		t.Error("reachable = true for a removed root")
	}
	if st.Error == "" {
		t.Error("expected a status error message")
	}
}
