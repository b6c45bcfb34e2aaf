package probe

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sadopc/duscope/internal/model"
)

// readBatch bounds how many directory entries are read between context checks.
const readBatch = 512

// Local reads the host filesystem without following symlinks.
type Local struct{}

// NewLocal returns a probe over the host filesystem.
func NewLocal() *Local {
	return &Local{}
}

// List reads dir in batches and lstats every entry, checking ctx between
// entries so a canceled listing stops early.
func (l *Local) List(ctx context.Context, dir string) ([]Entry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, &Error{Op: "open", Path: dir, Err: err}
	}
	defer f.Close()

	var out []Entry
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		batch, err := f.ReadDir(readBatch)
		for _, d := range batch {
			if cerr := ctx.Err(); cerr != nil {
				return out, cerr
			}
			e := Entry{Name: d.Name()}
			info, infoErr := d.Info()
			if infoErr != nil {
				e.Err = &Error{Op: "lstat", Path: filepath.Join(dir, d.Name()), Err: infoErr}
				e.Meta.Kind = kindFromType(d)
			} else {
				e.Meta = metadataFromInfo(info)
			}
			out = append(out, e)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, &Error{Op: "readdir", Path: dir, Err: err}
		}
	}
}

// Stat lstats a single path.
func (l *Local) Stat(_ context.Context, path string) (Metadata, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Metadata{}, &Error{Op: "lstat", Path: path, Err: err}
	}
	return metadataFromInfo(info), nil
}

func kindFromType(d os.DirEntry) model.Kind {
	return model.KindFromMode(d.Type())
}
