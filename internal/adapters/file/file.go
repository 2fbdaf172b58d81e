package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

const (
	InputDir  = "input"
	OutputDir = "output"
)

var errBadName = errors.New("invalid path component")

// Workspace keeps each batch's files under <root>/<batch>/{input,output}.
type Workspace struct {
	root string
}

func NewWorkspace(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("error creating workspace root %w", err)
	}

	return &Workspace{root: root}, nil
}

func shortID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(id.String(), "-", "")[:8], nil
}

// NewBatch allocates a batch identifier and creates its directories.
func (w *Workspace) NewBatch() (string, error) {
	id, err := shortID()
	if err != nil {
		return "", fmt.Errorf("error generating batch id %w", err)
	}

	for _, dir := range []string{w.InputDir(id), w.OutputDir(id)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("error creating batch directory %w", err)
		}
	}

	log.Debug().Str("batchId", id).Str("path", filepath.Join(w.root, id)).Msg("created batch workspace")

	return id, nil
}

func (w *Workspace) InputDir(batchID string) string {
	return filepath.Join(w.root, batchID, InputDir)
}

func (w *Workspace) OutputDir(batchID string) string {
	return filepath.Join(w.root, batchID, OutputDir)
}

// Save writes every upload into the batch input directory under a unique, sanitized name. Uploads
// that fail are logged and skipped; a returned item is always complete on disk.
func (w *Workspace) Save(ctx context.Context, batchID string, uploads []port.Upload) ([]domain.Item, error) {
	if err := checkName(batchID); err != nil {
		return nil, err
	}

	var items []domain.Item
	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		item, err := w.saveOne(batchID, upload)
		if err != nil {
			log.Error().Err(err).Str("batchId", batchID).Str("name", upload.Name).Msg("could not save upload")
			continue
		}

		items = append(items, item)
	}

	return items, nil
}

func (w *Workspace) saveOne(batchID string, upload port.Upload) (domain.Item, error) {
	name := filepath.Base(upload.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "unnamed"
	}

	prefix, err := shortID()
	if err != nil {
		return domain.Item{}, err
	}

	path := filepath.Join(w.InputDir(batchID), prefix+"_"+name)

	f, err := os.CreateTemp(w.InputDir(batchID), ".upload-*")
	if err != nil {
		return domain.Item{}, fmt.Errorf("error creating temp file %w", err)
	}

	if _, err := io.Copy(f, upload.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return domain.Item{}, fmt.Errorf("error writing upload %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return domain.Item{}, fmt.Errorf("error writing upload %w", err)
	}

	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return domain.Item{}, fmt.Errorf("error moving upload into place %w", err)
	}

	log.Debug().Str("path", path).Msg("saved upload")

	return domain.Item{Name: name, Path: path}, nil
}

// Resolve returns the path of a file inside a batch directory, refusing anything that would escape it.
func (w *Workspace) Resolve(batchID, dir, name string) (string, error) {
	if dir != InputDir && dir != OutputDir {
		return "", errBadName
	}
	if err := checkName(batchID); err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}

	path := filepath.Join(w.root, batchID, dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}

	return path, nil
}

// Cleanup removes everything the batch created. Calling it again is a no-op.
func (w *Workspace) Cleanup(batchID string) error {
	if err := checkName(batchID); err != nil {
		return err
	}

	path := filepath.Join(w.root, batchID)
	if err := os.RemoveAll(path); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("could not clean up batch workspace")
		return err
	}

	log.Debug().Str("path", path).Msg("cleaned up batch workspace")
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", errBadName, name)
	}
	return nil
}
