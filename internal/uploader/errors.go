package uploader

import "errors"

var (
	ErrMissingUpload   = errors.New("missing required upload")
	ErrTypeNotAccepted = errors.New("upload type not accepted")
	ErrNotValidated    = errors.New("uploads not validated")
	ErrEmptyPath       = errors.New("cannot resolve empty path")
	ErrUnsafePath      = errors.New("path escapes upload directory")
	ErrCreateDirectory = errors.New("unable to create directory")
	ErrChangeMode      = errors.New("unable to change file mode")
)
