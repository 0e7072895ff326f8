// Package seed loads development fixture data into a workspace. The
// fixture tree lives in an embedded YAML file so the dataset is easy to
// edit without touching Go code.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"cumulus/internal/domain/services"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Fixtures is the parsed seed dataset.
type Fixtures struct {
	Workspace WorkspaceFixture `yaml:"workspace"`
	Nodes     []NodeFixture    `yaml:"nodes"`
}

// WorkspaceFixture names the workspace the tree is seeded into.
type WorkspaceFixture struct {
	Name string `yaml:"name"`
}

// NodeFixture is one node in the fixture tree. Folders carry children;
// files carry size, mime type, and a content hash.
type NodeFixture struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Size     int64         `yaml:"size"`
	MimeType string        `yaml:"mime_type"`
	Hash     string        `yaml:"hash"`
	Children []NodeFixture `yaml:"children"`
}

// Load parses the embedded fixture file.
func Load() (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(fixturesYAML, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Apply creates the fixture tree inside the given workspace through the
// node service, so seeded data goes through the same validation and
// versioning as real requests.
func Apply(ctx context.Context, f *Fixtures, nodeService services.NodeService, workspaceID string, logger *slog.Logger) error {
	created := 0
	for i := range f.Nodes {
		n, err := applyNode(ctx, &f.Nodes[i], nodeService, workspaceID, nil)
		if err != nil {
			return err
		}
		created += n
	}
	logger.Info("fixtures applied", "workspace_id", workspaceID, "nodes", created)
	return nil
}

func applyNode(ctx context.Context, fx *NodeFixture, nodeService services.NodeService, workspaceID string, parentID *string) (int, error) {
	switch fx.Kind {
	case "folder":
		folder, err := nodeService.CreateFolder(ctx, &services.CreateFolderRequest{
			WorkspaceID: workspaceID,
			ParentID:    parentID,
			Name:        fx.Name,
		})
		if err != nil {
			return 0, fmt.Errorf("seed folder %q: %w", fx.Name, err)
		}
		total := 1
		for i := range fx.Children {
			n, err := applyNode(ctx, &fx.Children[i], nodeService, workspaceID, &folder.ID)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	case "file":
		if _, err := nodeService.CreateFile(ctx, &services.CreateFileRequest{
			WorkspaceID: workspaceID,
			ParentID:    parentID,
			Name:        fx.Name,
			Size:        fx.Size,
			MimeType:    fx.MimeType,
			Hash:        fx.Hash,
		}); err != nil {
			return 0, fmt.Errorf("seed file %q: %w", fx.Name, err)
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("fixture %q has unknown kind %q", fx.Name, fx.Kind)
	}
}
