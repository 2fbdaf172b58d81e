package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgadapt/internal/core/domain"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

const lockRetryDelay = 10 * time.Millisecond

// JSONFile keeps one JSON document per batch. Writes to a key are serialized with a lock file and
// land through a rename, so readers see either the previous or the new record.
type JSONFile struct {
	dir string
}

func NewJSONFile(dir string) (*JSONFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating status directory: %w", err)
	}

	return &JSONFile{dir: dir}, nil
}

func (j *JSONFile) path(batchID string) (string, error) {
	if batchID == "" || strings.ContainsAny(batchID, `/\`) || batchID == "." || batchID == ".." {
		return "", fmt.Errorf("%w: bad batch id %q", domain.ErrValidation, batchID)
	}

	return filepath.Join(j.dir, batchID+".json"), nil
}

func (j *JSONFile) Save(ctx context.Context, status domain.BatchStatus) error {
	path, err := j.path(status.BatchID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}

	lock := flock.New(path + ".lock")
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("error locking status %s: %w", status.BatchID, err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("error writing status: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("error replacing status: %w", err)
	}

	log.Debug().
		Str("batchId", status.BatchID).
		Str("status", string(status.Status)).
		Int("processed", status.Processed).
		Int("total", status.Total).
		Msg("status saved")

	return nil
}

func (j *JSONFile) Load(_ context.Context, batchID string) (domain.BatchStatus, error) {
	path, err := j.path(batchID)
	if err != nil {
		return domain.BatchStatus{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.BatchStatus{}, domain.ErrBatchNotFound
	}
	if err != nil {
		return domain.BatchStatus{}, fmt.Errorf("error reading status: %w", err)
	}

	var status domain.BatchStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.BatchStatus{}, fmt.Errorf("error decoding status %s: %w", batchID, err)
	}

	return status, nil
}

func (j *JSONFile) Delete(_ context.Context, batchID string) error {
	path, err := j.path(batchID)
	if err != nil {
		return err
	}

	for _, p := range []string{path, path + ".lock"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error deleting status: %w", err)
		}
	}

	log.Debug().Str("batchId", batchID).Msg("status deleted")
	return nil
}
