package config

import (
	"os"
	"path/filepath"
)

type UploadPaths struct {
	Base  string
	Files string
}

func NewUploadPaths(base string) UploadPaths {
	return UploadPaths{
		Base:  base,
		Files: filepath.Join(base, "files"),
	}
}

func (p UploadPaths) Ensure(mode os.FileMode) error {
	if err := os.MkdirAll(p.Files, mode); err != nil {
		return err
	}
	return nil
}
