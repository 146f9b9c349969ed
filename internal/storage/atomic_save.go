package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
)

// ErrModeUnsupported is returned by Chmod when the filesystem cannot change
// file modes.
var ErrModeUnsupported = errors.New("filesystem does not support mode changes")

// TmpSuffix marks files that are still being written.
const TmpSuffix = ".tmp"

func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func WriteJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// TmpName returns a temporary name next to name that no other save uses.
func TmpName(name string) string {
	dir, base := path.Split(name)
	return dir + "." + base + "." + uuid.NewString() + TmpSuffix
}

// SaveStreamAtomic writes r to a temporary file next to path and renames it
// to path once fully written. Every call uses its own temporary file, so
// concurrent saves to one path never write into each other; the last rename
// wins. The temporary file is removed on failure.
func SaveStreamAtomic(fs billy.Filesystem, path string, r io.Reader, perm os.FileMode) (int64, error) {
	tmp := TmpName(path)
	f, err := fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return 0, fmt.Errorf("create tmp file: %w", err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		_ = fs.Remove(tmp)
		return n, fmt.Errorf("write: %w", copyErr)
	}
	if closeErr != nil {
		_ = fs.Remove(tmp)
		return n, fmt.Errorf("close: %w", closeErr)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return n, fmt.Errorf("rename: %w", err)
	}
	return n, nil
}

func Chmod(fs billy.Filesystem, path string, mode os.FileMode) error {
	ch, ok := fs.(billy.Change)
	if !ok {
		return ErrModeUnsupported
	}
	return ch.Chmod(path, mode)
}

// RemoveIfExists removes path, ignoring a missing file.
func RemoveIfExists(fs billy.Filesystem, path string) error {
	err := fs.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
