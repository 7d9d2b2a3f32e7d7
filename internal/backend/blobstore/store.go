package blobstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrInvalidName is returned for names that are not a single flat file name
var ErrInvalidName = errors.New("invalid blob name")

// Store keeps image files in one flat directory
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore wraps an existing filesystem; dir is only used to build the
// file_path recorded next to each image row.
func NewStore(fsys afero.Fs, dir string) *Store {
	return &Store{fs: fsys, dir: dir}
}

// NewDiskStore creates dir if needed and confines all access to it
func NewDiskStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	slog.Info("using upload directory", "dir", dir)
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir), dir), nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Save writes data under name, replacing any existing file
func (s *Store) Save(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, name, data, 0o644)
}

func (s *Store) Read(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return afero.ReadFile(s.fs, name)
}

// Remove deletes name; a file that is already gone is not an error
func (s *Store) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	ok, err := afero.Exists(s.fs, name)
	return err == nil && ok
}

// List returns the names of all regular files
func (s *Store) List() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

func (s *Store) ModTime(name string) (time.Time, error) {
	if err := validName(name); err != nil {
		return time.Time{}, err
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Path is the value recorded in the file_path column for name
func (s *Store) Path(name string) string {
	return filepath.ToSlash(filepath.Join(s.dir, name))
}

// NameFromPath reverses Path
func NameFromPath(path string) string {
	return filepath.Base(filepath.FromSlash(path))
}

// FS exposes the store read-only for static file serving
func (s *Store) FS() fs.FS {
	return afero.NewIOFS(afero.NewReadOnlyFs(s.fs))
}
