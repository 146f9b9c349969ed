package uploader

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
)

// File is a single upload submitted with a request.
type File interface {
	// Key is the form field the file was submitted under. When a field
	// carries several files, each one gets an index suffix ("photos.0").
	Key() string
	Filename() string
	Size() int64
	Header() textproto.MIMEHeader
	Open() (io.ReadCloser, error)
}

type multipartFile struct {
	key string
	fh  *multipart.FileHeader
}

func (f *multipartFile) Key() string { return f.key }
func (f *multipartFile) Filename() string { return f.fh.Filename }
func (f *multipartFile) Size() int64 { return f.fh.Size }
func (f *multipartFile) Header() textproto.MIMEHeader { return f.fh.Header }

func (f *multipartFile) Open() (io.ReadCloser, error) {
	return f.fh.Open()
}

// NewMultipartFile adapts a parsed multipart file header.
func NewMultipartFile(key string, fh *multipart.FileHeader) File {
	return &multipartFile{key: key, fh: fh}
}

// FilesFromRequest parses a multipart request and returns every file it
// carries. Parts without a filename and without content were left empty by
// the client and are skipped.
func FilesFromRequest(r *http.Request, maxMemory int64) ([]File, error) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			if errors.Is(err, http.ErrNotMultipart) {
				return nil, nil
			}
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
	}

	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var files []File
	for _, field := range fields {
		headers := r.MultipartForm.File[field]
		for i, fh := range headers {
			if fh.Filename == "" && fh.Size == 0 {
				continue
			}
			key := field
			if len(headers) > 1 {
				key = field + "." + strconv.Itoa(i)
			}
			files = append(files, NewMultipartFile(key, fh))
		}
	}
	return files, nil
}
