package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/pgext-install/internal/fsutil"
)

// FilePermissions is the mode of written receipts.
const FilePermissions os.FileMode = 0o644

// Repository defines persistence operations for receipts.
type Repository interface {
	Load(ctx context.Context) (*Receipt, error)
	Save(ctx context.Context, receipt *Receipt) error
}

// FileRepository persists a receipt as YAML at a fixed path.
type FileRepository struct {
	// path is the filesystem location of the receipt.
	path string
	// mu serializes access to the file.
	mu sync.Mutex
}

// ErrNotFound is returned when no receipt has been written yet.
var ErrNotFound = errors.New("receipt not found")

// NewFileRepository creates a repository reading and writing YAML at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the receipt from disk.
func (r *FileRepository) Load(_ context.Context) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt: %w", err)
	}

	var receipt Receipt
	if err = yaml.Unmarshal(contents, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	return &receipt, nil
}

// Save writes the receipt, creating its directory if needed.
func (r *FileRepository) Save(_ context.Context, receipt *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	if err = fsutil.EnsureDir(filepath.Dir(r.path)); err != nil {
		return err
	}

	if err = os.WriteFile(r.path, data, FilePermissions); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}

	return nil
}
