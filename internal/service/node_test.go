package service

import (
	"context"
	"errors"
	"testing"

	"cumulus/internal/domain"
	"cumulus/internal/domain/models"
	"cumulus/internal/domain/services"
	"cumulus/internal/events"
	"cumulus/internal/httputil"
)

// nodeTestEnv wires a node service to in-memory repositories and a real
// listing service, so mutations can be observed through open listings.
type nodeTestEnv struct {
	nodes    *fakeNodeRepo
	versions *fakeVersionRepo
	listings services.ListingService
	bus      *events.Broadcaster
	svc      services.NodeService
}

func newNodeTestEnv(seed ...models.Node) *nodeTestEnv {
	logger := discardLogger()
	nodes := newFakeNodeRepo(seed...)
	versions := newFakeVersionRepo()
	listings := NewListingService(nodes, logger)
	bus := events.NewBroadcaster()
	return &nodeTestEnv{
		nodes:    nodes,
		versions: versions,
		listings: listings,
		bus:      bus,
		svc:      NewNodeService(nodes, versions, fakeTxManager{}, listings, bus, logger),
	}
}

func strptr(s string) *string { return &s }

func int64ptr(v int64) *int64 { return &v }

func TestCreateFolderValidation(t *testing.T) {
	env := newNodeTestEnv()

	tests := []struct {
		name string
		req  *services.CreateFolderRequest
	}{
		{
			name: "missing workspace",
			req:  &services.CreateFolderRequest{Name: "docs"},
		},
		{
			name: "empty name",
			req:  &services.CreateFolderRequest{WorkspaceID: testWorkspace},
		},
		{
			name: "slash in name",
			req:  &services.CreateFolderRequest{WorkspaceID: testWorkspace, Name: "a/b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateFolder(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("CreateFolder() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateFolderAppearsInOpenListing(t *testing.T) {
	env := newNodeTestEnv(fileNode("f1", "zebra.txt", 1))

	state, err := env.listings.Open(context.Background(), &services.OpenListingRequest{WorkspaceID: testWorkspace})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	sub := env.bus.Subscribe()
	defer env.bus.Unsubscribe(sub)

	folder, err := env.svc.CreateFolder(context.Background(), &services.CreateFolderRequest{
		WorkspaceID: testWorkspace,
		Name:        "archive",
	})
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}

	got, _ := env.listings.Get(state.ID)
	assertStateIDs(t, got, folder.ID, "f1")

	select {
	case evt := <-sub:
		if evt.Type != events.EventCreate || evt.NodeID != folder.ID {
			t.Errorf("got event %+v, want create for %s", evt, folder.ID)
		}
	default:
		t.Error("expected a create event on the broadcaster")
	}
}

func TestCreateFolderDuplicateName(t *testing.T) {
	env := newNodeTestEnv(folderNode("d1", "docs"))

	_, err := env.svc.CreateFolder(context.Background(), &services.CreateFolderRequest{
		WorkspaceID: testWorkspace,
		Name:        "docs",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("CreateFolder() error = %v, want ErrConflict", err)
	}
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatal("expected *domain.ConflictError")
	}
	if conflict.ResourceID != "d1" {
		t.Errorf("conflict resource = %s, want d1", conflict.ResourceID)
	}
}

func TestCreateFileRecordsFirstVersion(t *testing.T) {
	env := newNodeTestEnv()

	node, err := env.svc.CreateFile(context.Background(), &services.CreateFileRequest{
		WorkspaceID: testWorkspace,
		Name:        "report.pdf",
		Size:        2048,
		MimeType:    "application/pdf",
		Hash:        "abc123",
	})
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if node.SizeOrZero() != 2048 {
		t.Errorf("size = %d, want 2048", node.SizeOrZero())
	}

	versions, err := env.svc.ListVersions(context.Background(), node.ID, testWorkspace)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 1 || versions[0].Number != 1 || versions[0].Hash != "abc123" {
		t.Errorf("versions = %+v, want single version 1 with hash abc123", versions)
	}
}

func TestUpdateNodeRename(t *testing.T) {
	env := newNodeTestEnv(fileNode("f1", "old.txt", 1))

	node, err := env.svc.UpdateNode(context.Background(), "f1", &services.UpdateNodeRequest{
		WorkspaceID: testWorkspace,
		Name:        strptr("new.txt"),
	})
	if err != nil {
		t.Fatalf("UpdateNode() error = %v", err)
	}
	if node.Name != "new.txt" {
		t.Errorf("name = %s, want new.txt", node.Name)
	}
}

func TestUpdateNodeContentChangeAppendsVersion(t *testing.T) {
	env := newNodeTestEnv()

	node, err := env.svc.CreateFile(context.Background(), &services.CreateFileRequest{
		WorkspaceID: testWorkspace,
		Name:        "notes.md",
		Size:        100,
	})
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	_, err = env.svc.UpdateNode(context.Background(), node.ID, &services.UpdateNodeRequest{
		WorkspaceID: testWorkspace,
		Size:        int64ptr(250),
		Hash:        strptr("def456"),
	})
	if err != nil {
		t.Fatalf("UpdateNode() error = %v", err)
	}

	versions, err := env.svc.ListVersions(context.Background(), node.ID, testWorkspace)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	if versions[0].Number != 2 || versions[0].Size != 250 || versions[0].Hash != "def456" {
		t.Errorf("latest version = %+v, want number 2, size 250, hash def456", versions[0])
	}
}

func TestUpdateNodeMoveToFolderAndRoot(t *testing.T) {
	env := newNodeTestEnv(
		folderNode("dir", "stuff"),
		fileNode("f1", "a.txt", 1),
	)

	node, err := env.svc.UpdateNode(context.Background(), "f1", &services.UpdateNodeRequest{
		WorkspaceID: testWorkspace,
		ParentID:    httputil.OptionalString{Present: true, Value: strptr("dir")},
	})
	if err != nil {
		t.Fatalf("UpdateNode(move) error = %v", err)
	}
	if node.ParentID == nil || *node.ParentID != "dir" {
		t.Fatalf("parent = %v, want dir", node.ParentID)
	}

	// JSON null moves the node back to the workspace root.
	node, err = env.svc.UpdateNode(context.Background(), "f1", &services.UpdateNodeRequest{
		WorkspaceID: testWorkspace,
		ParentID:    httputil.OptionalString{Present: true, Value: nil},
	})
	if err != nil {
		t.Fatalf("UpdateNode(to root) error = %v", err)
	}
	if node.ParentID != nil {
		t.Errorf("parent = %v, want root", *node.ParentID)
	}
}

func TestUpdateNodeMoveIntoFile(t *testing.T) {
	env := newNodeTestEnv(
		fileNode("f1", "a.txt", 1),
		fileNode("f2", "b.txt", 2),
	)

	_, err := env.svc.UpdateNode(context.Background(), "f1", &services.UpdateNodeRequest{
		WorkspaceID: testWorkspace,
		ParentID:    httputil.OptionalString{Present: true, Value: strptr("f2")},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("moving into a file: error = %v, want ErrValidation", err)
	}
}

func TestUpdateNodeCircularMove(t *testing.T) {
	env := newNodeTestEnv(
		folderNode("a", "a"),
		childOf(folderNode("b", "b"), "a"),
		childOf(folderNode("c", "c"), "b"),
	)

	tests := []struct {
		name   string
		target string
	}{
		{name: "into itself", target: "a"},
		{name: "into child", target: "b"},
		{name: "into grandchild", target: "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.UpdateNode(context.Background(), "a", &services.UpdateNodeRequest{
				WorkspaceID: testWorkspace,
				ParentID:    httputil.OptionalString{Present: true, Value: &tt.target},
			})
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCopyFolderRecursive(t *testing.T) {
	env := newNodeTestEnv(
		folderNode("src", "project"),
		childOf(fileNode("f1", "readme.md", 64), "src"),
		childOf(folderNode("sub", "assets"), "src"),
		childOf(fileNode("f2", "logo.png", 512), "sub"),
		folderNode("dst", "backup"),
	)

	copied, err := env.svc.CopyNode(context.Background(), "src", &services.CopyNodeRequest{
		WorkspaceID: testWorkspace,
		ParentID:    strptr("dst"),
	})
	if err != nil {
		t.Fatalf("CopyNode() error = %v", err)
	}
	if copied.ID == "src" {
		t.Fatal("copy must get a fresh id")
	}
	if copied.ParentID == nil || *copied.ParentID != "dst" {
		t.Fatalf("copy parent = %v, want dst", copied.ParentID)
	}

	children, err := env.nodes.ListAllChildren(context.Background(), testWorkspace, &copied.ID)
	if err != nil {
		t.Fatalf("ListAllChildren() error = %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("copied folder has %d children, want 2", len(children))
	}
	for _, c := range children {
		if c.ID == "f1" || c.ID == "sub" {
			t.Errorf("child %s reuses the source id", c.ID)
		}
		if c.Kind == models.KindFile {
			vs, _ := env.versions.ListByNode(context.Background(), c.ID)
			if len(vs) != 1 {
				t.Errorf("copied file %s has %d versions, want 1", c.Name, len(vs))
			}
		}
	}

	// The source tree is untouched.
	if _, err := env.svc.GetNode(context.Background(), "f1", testWorkspace); err != nil {
		t.Errorf("source child missing after copy: %v", err)
	}
}

func TestCopyFolderIntoOwnSubtree(t *testing.T) {
	env := newNodeTestEnv(
		folderNode("a", "a"),
		childOf(folderNode("b", "b"), "a"),
	)

	for _, target := range []string{"a", "b"} {
		_, err := env.svc.CopyNode(context.Background(), "a", &services.CopyNodeRequest{
			WorkspaceID: testWorkspace,
			ParentID:    strptr(target),
		})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("copy into %s: error = %v, want ErrValidation", target, err)
		}
	}
}

func TestTrashAndRestoreSubtree(t *testing.T) {
	env := newNodeTestEnv(
		folderNode("dir", "stuff"),
		childOf(fileNode("f1", "a.txt", 1), "dir"),
	)

	state, err := env.listings.Open(context.Background(), &services.OpenListingRequest{WorkspaceID: testWorkspace})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := env.svc.TrashNode(context.Background(), "dir", testWorkspace); err != nil {
		t.Fatalf("TrashNode() error = %v", err)
	}

	got, _ := env.listings.Get(state.ID)
	assertStateIDs(t, got)

	if _, err := env.svc.GetNode(context.Background(), "f1", testWorkspace); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("descendant should be trashed with its folder, got %v", err)
	}

	trash, err := env.svc.ListTrash(context.Background(), testWorkspace, 10, 0)
	if err != nil {
		t.Fatalf("ListTrash() error = %v", err)
	}
	if len(trash) != 2 {
		t.Fatalf("trash holds %d nodes, want 2", len(trash))
	}

	restored, err := env.svc.RestoreNode(context.Background(), "dir", testWorkspace)
	if err != nil {
		t.Fatalf("RestoreNode() error = %v", err)
	}
	if restored.ParentID != nil {
		t.Errorf("restored parent = %v, want root", *restored.ParentID)
	}
	if _, err := env.svc.GetNode(context.Background(), "f1", testWorkspace); err != nil {
		t.Errorf("descendant should come back with its folder, got %v", err)
	}

	got, _ = env.listings.Get(state.ID)
	assertStateIDs(t, got, "dir")
}

func TestRestoreIntoTrashedParentLandsAtRoot(t *testing.T) {
	env := newNodeTestEnv(
		folderNode("dir", "stuff"),
		childOf(fileNode("f1", "a.txt", 1), "dir"),
	)

	// Trash the child on its own, then the parent folder.
	if err := env.svc.TrashNode(context.Background(), "f1", testWorkspace); err != nil {
		t.Fatalf("TrashNode(f1) error = %v", err)
	}
	if err := env.svc.TrashNode(context.Background(), "dir", testWorkspace); err != nil {
		t.Fatalf("TrashNode(dir) error = %v", err)
	}

	restored, err := env.svc.RestoreNode(context.Background(), "f1", testWorkspace)
	if err != nil {
		t.Fatalf("RestoreNode() error = %v", err)
	}
	if restored.ParentID != nil {
		t.Errorf("restored parent = %v, want root (original folder is trashed)", *restored.ParentID)
	}
}

func TestDeleteNodeRequiresTrash(t *testing.T) {
	env := newNodeTestEnv(fileNode("f1", "a.txt", 1))

	if err := env.svc.DeleteNode(context.Background(), "f1", testWorkspace); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("DeleteNode(live) error = %v, want ErrNotFound", err)
	}

	if err := env.svc.TrashNode(context.Background(), "f1", testWorkspace); err != nil {
		t.Fatalf("TrashNode() error = %v", err)
	}
	if err := env.svc.DeleteNode(context.Background(), "f1", testWorkspace); err != nil {
		t.Fatalf("DeleteNode() error = %v", err)
	}

	if vs, _ := env.versions.ListByNode(context.Background(), "f1"); len(vs) != 0 {
		t.Errorf("versions survive permanent delete: %+v", vs)
	}
	if _, err := env.svc.GetNode(context.Background(), "f1", testWorkspace); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted node still retrievable: %v", err)
	}
}

func TestListVersionsOnFolder(t *testing.T) {
	env := newNodeTestEnv(folderNode("d1", "docs"))

	_, err := env.svc.ListVersions(context.Background(), "d1", testWorkspace)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("ListVersions(folder) error = %v, want ErrValidation", err)
	}
}

func TestSearchValidation(t *testing.T) {
	env := newNodeTestEnv(
		fileNode("f1", "quarterly-report.pdf", 1),
		fileNode("f2", "notes.md", 1),
	)

	if _, err := env.svc.Search(context.Background(), &models.SearchOptions{WorkspaceID: testWorkspace}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty query: error = %v, want ErrValidation", err)
	}

	results, err := env.svc.Search(context.Background(), &models.SearchOptions{
		WorkspaceID: testWorkspace,
		Query:       "report",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results.Nodes) != 1 || results.Nodes[0].ID != "f1" {
		t.Errorf("results = %+v, want just f1", results.Nodes)
	}
}
