package kss

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docbase-tech/docbase/core/logger"
)

// LocalFilesystem stores blobs as plain files under a base folder.
type LocalFilesystem struct {
	baseFolder string
}

// NewLocalFilesystem returns a filesystem driver rooted at baseFolder,
// creating the folder if necessary.
func NewLocalFilesystem(baseFolder string) (*LocalFilesystem, error) {
	if baseFolder == "" {
		return nil, fmt.Errorf("base folder must not be empty")
	}
	if err := os.MkdirAll(baseFolder, 0700); err != nil {
		return nil, err
	}
	logger.Default().Debugln("kss local filesystem enabled at ", baseFolder)
	return &LocalFilesystem{baseFolder: baseFolder}, nil
}

func (f LocalFilesystem) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key '%s'", key)
	}
	return filepath.Join(f.baseFolder, filepath.FromSlash(key)), nil
}

// Save writes the blob for key, creating parent folders as needed. It
// returns the number of bytes written.
func (f LocalFilesystem) Save(key string, reader io.Reader) (int64, error) {
	filePath, err := f.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return 0, err
	}
	dst, err := os.Create(filePath)
	if err != nil {
		return 0, err
	}
	defer dst.Close()
	return io.Copy(dst, reader)
}

// Open returns a reader for the blob at key. The caller closes it.
func (f LocalFilesystem) Open(key string) (io.ReadCloser, error) {
	filePath, err := f.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filePath)
}

// Delete removes the blob at key. Deleting a missing key is not an error.
func (f LocalFilesystem) Delete(key string) error {
	filePath, err := f.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeleteAllWithPrefix removes every blob below prefix, typically an
// entire project folder.
func (f LocalFilesystem) DeleteAllWithPrefix(prefix string) error {
	filePath, err := f.path(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(filePath)
}
