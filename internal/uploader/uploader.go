// Package uploader validates the files submitted with a request against a
// set of expected uploads and moves them into place.
//
// Processing happens in two phases. Validate checks every expected upload
// without touching the filesystem; Save then moves the validated uploads.
// A request that lacks a required upload therefore never leaves files
// from its other uploads behind.
package uploader

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"

	"github.com/basilfx/uploader/internal/storage"
)

const (
	DefaultFileMode      os.FileMode = 0o644
	DefaultDirectoryMode os.FileMode = 0o755
)

type Option func(*Uploader)

func WithFileMode(mode os.FileMode) Option {
	return func(u *Uploader) { u.fileMode = mode }
}

func WithDirectoryMode(mode os.FileMode) Option {
	return func(u *Uploader) { u.directoryMode = mode }
}

// WithFilesystem stores uploads in fs instead of the OS filesystem rooted
// at the base path. Paths passed to fs are relative to the base path.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(u *Uploader) { u.fs = fs }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(u *Uploader) { u.log = log }
}

type queued struct {
	file        File
	rule        Rule
	contentType string
}

// Uploader validates and saves the uploads of a single request. It is not
// safe for concurrent use.
type Uploader struct {
	path          string
	fileMode      os.FileMode
	directoryMode os.FileMode

	fs          billy.Filesystem
	fsIsDefault bool
	log         logrus.FieldLogger

	keys  []string
	rules map[string]Rule

	queue     []queued
	validated bool
}

func New(path string, opts ...Option) *Uploader {
	u := &Uploader{
		path:          path,
		fileMode:      DefaultFileMode,
		directoryMode: DefaultDirectoryMode,
		log:           logrus.StandardLogger(),
		rules:         map[string]Rule{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Uploader) Path() string { return u.path }

func (u *Uploader) FileMode() os.FileMode { return u.fileMode }

func (u *Uploader) DirectoryMode() os.FileMode { return u.directoryMode }

func (u *Uploader) SetFileMode(mode os.FileMode) { u.fileMode = mode }

func (u *Uploader) SetDirectoryMode(mode os.FileMode) { u.directoryMode = mode }

// SetPath changes the base path. When the Uploader writes to the OS
// filesystem, files are stored below the new base path from the next Save
// on. A filesystem set with WithFilesystem is kept as is: files keep going
// to it, and only Path and the reported Upload.Path change. Callers that
// move such an Uploader must point the filesystem at the new base path
// themselves.
func (u *Uploader) SetPath(path string) {
	u.path = path
	if u.fsIsDefault {
		u.fs = nil
		u.fsIsDefault = false
	}
}

// Add registers the expected upload key. Adding a key twice replaces the
// earlier rule but keeps its position.
func (u *Uploader) Add(key string, rule Rule) {
	if _, ok := u.rules[key]; !ok {
		u.keys = append(u.keys, key)
	}
	u.rules[key] = rule
	u.validated = false
	u.queue = nil
}

// Validate matches files against the registered uploads and queues the
// matches for Save. It fails on the first required upload that is missing
// or on the first upload whose type is not accepted; the queue is empty
// afterwards.
func (u *Uploader) Validate(files []File) error {
	u.queue = nil
	u.validated = false

	index := make(map[string]File, len(files))
	for _, f := range files {
		index[f.Key()] = f
	}

	var queue []queued
	for _, key := range u.keys {
		rule := u.rules[key]
		f, ok := index[key]
		if !ok {
			if rule.Optional {
				u.log.WithField("key", key).Debug("optional upload not present")
				continue
			}
			return fmt.Errorf("%w: %s", ErrMissingUpload, key)
		}

		mt, err := detectType(f)
		if err != nil {
			return err
		}
		if !accepts(rule.Types, mt) {
			return fmt.Errorf("%w: %s has type %s", ErrTypeNotAccepted, key, mt.String())
		}

		queue = append(queue, queued{file: f, rule: rule, contentType: mt.String()})
	}

	u.queue = queue
	u.validated = true
	return nil
}

// Save moves the uploads queued by Validate into place and returns them by
// key. It stops at the first failure; uploads saved before that stay in
// place.
func (u *Uploader) Save() (map[string]*Upload, error) {
	if !u.validated {
		return nil, ErrNotValidated
	}

	fs := u.filesystem()
	result := make(map[string]*Upload, len(u.queue))
	for _, item := range u.queue {
		up, err := u.save(fs, item)
		if err != nil {
			return nil, err
		}
		result[item.file.Key()] = up
	}
	return result, nil
}

func (u *Uploader) save(fs billy.Filesystem, item queued) (*Upload, error) {
	f := item.file

	if item.rule.Name == nil {
		return nil, fmt.Errorf("%w: no name for upload %s", ErrEmptyPath, f.Key())
	}
	relativePath, err := item.rule.Name(f)
	if err != nil {
		return nil, fmt.Errorf("name upload %s: %w", f.Key(), err)
	}

	fullPath, err := u.Resolve(relativePath)
	if err != nil {
		return nil, err
	}
	rel := CleanPath(relativePath)

	if dir := path.Dir(rel); dir != "." {
		if err := fs.MkdirAll(dir, u.directoryMode); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCreateDirectory, filepath.Dir(fullPath), err)
		}
	}

	src, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", f.Key(), err)
	}
	size, err := storage.SaveStreamAtomic(fs, rel, src, u.fileMode)
	_ = src.Close()
	if err != nil {
		return nil, fmt.Errorf("move upload %s to %s: %w", f.Key(), fullPath, err)
	}

	if err := u.chmod(fs, rel, fullPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrChangeMode, fullPath, err)
	}

	u.log.WithFields(logrus.Fields{
		"key":  f.Key(),
		"path": fullPath,
		"size": size,
	}).Info("upload saved")

	return &Upload{
		Path:         fullPath,
		RelativePath: rel,
		ContentType:  item.contentType,
		Size:         size,
		File:         f,
	}, nil
}

// Resolve returns the full path of a path relative to the base path. A
// path ending in a separator names a directory and cannot be resolved.
func (u *Uploader) Resolve(relativePath string) (string, error) {
	rel := CleanPath(relativePath)
	if strings.TrimSpace(relativePath) == "" || rel == "." {
		return "", ErrEmptyPath
	}
	if strings.HasSuffix(relativePath, "/") || strings.HasSuffix(relativePath, `\`) {
		return "", fmt.Errorf("%w: %s names a directory", ErrEmptyPath, relativePath)
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, relativePath)
	}
	return filepath.Join(u.path, filepath.FromSlash(rel)), nil
}

// CleanPath returns the slash separated form of a relative path as it is
// stored below the base path.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean(strings.TrimLeft(p, "/"))
}

func (u *Uploader) filesystem() billy.Filesystem {
	if u.fs == nil {
		u.fs = osfs.New(u.path, osfs.WithBoundOS())
		u.fsIsDefault = true
	}
	return u.fs
}

func (u *Uploader) chmod(fs billy.Filesystem, rel, fullPath string) error {
	err := storage.Chmod(fs, rel, u.fileMode)
	if !errors.Is(err, storage.ErrModeUnsupported) {
		return err
	}
	if u.fsIsDefault {
		return os.Chmod(fullPath, u.fileMode)
	}
	// The mode was passed on creation; nothing more can be done here.
	u.log.WithField("path", fullPath).Debug("filesystem cannot change modes")
	return nil
}
