package testsupport

import (
	"testing"

	"coworker/internal/workspace"
)

// NewWorkspace creates an initialised workspace in a temp directory.
func NewWorkspace(t testing.TB) workspace.Layout {
	t.Helper()
	return NewWorkspaceAt(t, t.TempDir())
}

// NewWorkspaceAt initialises a workspace rooted at root.
func NewWorkspaceAt(t testing.TB, root string) workspace.Layout {
	t.Helper()
	layout, err := workspace.New(root)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	if err := layout.EnsureStructure(); err != nil {
		t.Fatalf("EnsureStructure: %v", err)
	}
	return layout
}
