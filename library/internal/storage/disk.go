package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type diskStore struct {
	dir string
	log *zap.Logger
}

func NewDiskStore(dir string, log *zap.Logger) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &diskStore{dir: dir, log: log.Named("disk-store")}, nil
}

func (s *diskStore) Save(_ context.Context, name string, r io.Reader) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "create image")
	}
	if _, err := io.Copy(f, io.LimitReader(r, MaxImageSize+1)); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return errors.Wrap(err, "write image")
	}
	return f.Close()
}

// Delete is a no-op for images that are already gone.
func (s *diskStore) Delete(_ context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove image")
	}
	s.log.Debug("image removed", zap.String("name", name))
	return nil
}
