package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrSourceMissing is returned by Rename when the file to move does not exist.
var ErrSourceMissing = errors.New("rename source does not exist")

// LocalStorage implements ports.ClipStore on one private directory.
type LocalStorage struct {
	root string
	log  *logger.Logger
}

// NewLocalStorage creates a clip store rooted at root. The directory is
// created lazily on the first Create.
func NewLocalStorage(root string, log *logger.Logger) (*LocalStorage, error) {
	if root == "" {
		return nil, pkgerrors.NewValidationError("root", root, "clip root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, pkgerrors.NewIOError("resolve root", root, err)
	}
	return &LocalStorage{
		root: abs,
		log:  logger.OrNop(log).Named("store"),
	}, nil
}

func (s *LocalStorage) Root() string { return s.root }

// Resolve joins name with the root. It does not check that the file exists.
func (s *LocalStorage) Resolve(name string) string {
	return filepath.Join(s.root, name)
}

// Create makes sure an empty file exists at name, leaving existing content
// alone.
func (s *LocalStorage) Create(_ context.Context, name string) error {
	if err := model.ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		s.log.Error("create clip root failed", zap.String("path", s.root), zap.Error(err))
		return pkgerrors.NewIOError("mkdir", s.root, err)
	}

	path := s.Resolve(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Error("create clip file failed", zap.String("path", path), zap.Error(err))
		return pkgerrors.NewIOError("create", path, err)
	}
	return f.Close()
}

// Rename moves from onto to in one step, replacing to.
func (s *LocalStorage) Rename(_ context.Context, from, to string) error {
	if err := model.ValidateName(from); err != nil {
		return err
	}
	if err := model.ValidateName(to); err != nil {
		return err
	}

	src, dst := s.Resolve(from), s.Resolve(to)
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = multierr.Append(ErrSourceMissing, err)
		}
		s.log.Error("rename clip file failed",
			zap.String("from", src),
			zap.String("to", dst),
			zap.Error(err),
		)
		return pkgerrors.NewIOError("rename", src, err)
	}
	return nil
}

// Delete removes name. A file that is already gone is not an error.
func (s *LocalStorage) Delete(_ context.Context, name string) error {
	if err := model.ValidateName(name); err != nil {
		return err
	}
	path := s.Resolve(name)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("delete clip file failed", zap.String("path", path), zap.Error(err))
		return pkgerrors.NewIOError("delete", path, err)
	}
	return nil
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.Resolve(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.NewIOError("stat", s.Resolve(name), err)
	}
	return true, nil
}

// Size returns file size in bytes
func (s *LocalStorage) Size(_ context.Context, name string) (int64, error) {
	info, err := os.Stat(s.Resolve(name))
	if err != nil {
		return 0, pkgerrors.NewIOError("stat", s.Resolve(name), err)
	}
	return info.Size(), nil
}

// FileExists reports whether an absolute path exists. The exporter uses it
// for paths outside the clip root, such as batch inputs.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFile deletes an absolute path, ignoring a missing file.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
