package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/retry"
)

// Fixtures serves tool documents from a directory. A session specific file
// <session>/<tool>.json wins over the shared <tool>.json.
type Fixtures struct {
	fsys fs.FS
}

// NewFixtures serves documents from dir.
func NewFixtures(dir string) *Fixtures {
	return NewFixturesFS(os.DirFS(dir))
}

// NewFixturesFS serves documents from fsys.
func NewFixturesFS(fsys fs.FS) *Fixtures {
	return &Fixtures{fsys: fsys}
}

// Capability returns the capability reading the document for id.
func (f *Fixtures) Capability(id model.SourceID) (Capability, error) {
	tool, err := ToolName(id)
	if err != nil {
		return nil, err
	}
	return CapabilityFunc(func(ctx context.Context, sessionID string) (Response, error) {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		data, err := f.read(sessionID, tool+".json")
		if err != nil {
			return Response{}, err
		}
		return decodeToolText(data)
	}), nil
}

func (f *Fixtures) read(sessionID, name string) ([]byte, error) {
	candidates := []string{name}
	if sessionID != "" && fs.ValidPath(sessionID) {
		candidates = []string{path.Join(sessionID, name), name}
	}
	for _, p := range candidates {
		data, err := fs.ReadFile(f.fsys, p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read fixture %s: %w", p, err)
		}
	}
	return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrNoFixture, name))
}
