// Package source hydrates the knowledge base from external documents: a
// JSON array of behavior profiles and a JSON object describing brain regions.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// Default document names inside a knowledge directory or bucket prefix.
const (
	DefaultProfilesName = "behavior_profiles.json"
	DefaultCatalogName  = "brain_regions.json"
)

// Source returns the raw profile and catalog documents.
type Source interface {
	ReadProfiles(ctx context.Context) ([]byte, error)
	ReadCatalog(ctx context.Context) ([]byte, error)
	// Describe names the source in logs.
	Describe() string
}

// FileSource reads both documents from a local directory.
type FileSource struct {
	Dir          string
	ProfilesName string
	CatalogName  string
}

// NewFileSource uses the default document names when the given ones are empty.
func NewFileSource(dir, profilesName, catalogName string) *FileSource {
	if profilesName == "" {
		profilesName = DefaultProfilesName
	}
	if catalogName == "" {
		catalogName = DefaultCatalogName
	}
	return &FileSource{Dir: dir, ProfilesName: profilesName, CatalogName: catalogName}
}

func (s *FileSource) ProfilesPath() string { return filepath.Join(s.Dir, s.ProfilesName) }
func (s *FileSource) CatalogPath() string  { return filepath.Join(s.Dir, s.CatalogName) }

func (s *FileSource) ReadProfiles(ctx context.Context) ([]byte, error) {
	return readFile(ctx, s.ProfilesPath())
}

func (s *FileSource) ReadCatalog(ctx context.Context) ([]byte, error) {
	return readFile(ctx, s.CatalogPath())
}

func (s *FileSource) Describe() string {
	return "file://" + s.Dir
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.SourceLoad(err, fmt.Sprintf("read %s", path))
	}
	return data, nil
}
