package uploader

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NameFunc returns the destination of an upload, relative to the base path
// of the Uploader.
type NameFunc func(f File) (string, error)

// Rule describes an expected upload.
type Rule struct {
	Name NameFunc
	// Types lists accepted MIME types. Entries may use a wildcard subtype
	// ("image/*"). An empty list accepts any type.
	Types    []string
	Optional bool
}

// StaticName always stores the upload at name.
func StaticName(name string) NameFunc {
	return func(File) (string, error) {
		return name, nil
	}
}

// TemplateName expands placeholders in tmpl using the upload metadata:
//
//	{key}       form key of the upload
//	{filename}  base name of the client supplied filename
//	{base}      {filename} without its extension
//	{ext}       extension of {filename}, including the dot
//	{uuid}      a random UUID
//	{date}      current date as YYYY/MM/DD
//
// A template without placeholders behaves like StaticName. Expansions that
// end in a separator, such as "{key}/{filename}" without a filename, fail
// with ErrEmptyPath.
func TemplateName(tmpl string) NameFunc {
	if !strings.Contains(tmpl, "{") {
		return StaticName(tmpl)
	}
	return func(f File) (string, error) {
		filename := path.Base(strings.ReplaceAll(f.Filename(), `\`, "/"))
		if filename == "." || filename == "/" {
			filename = ""
		}
		ext := path.Ext(filename)
		r := strings.NewReplacer(
			"{key}", f.Key(),
			"{filename}", filename,
			"{base}", strings.TrimSuffix(filename, ext),
			"{ext}", strings.ToLower(ext),
			"{uuid}", uuid.NewString(),
			"{date}", time.Now().UTC().Format("2006/01/02"),
		)
		name := r.Replace(tmpl)
		if strings.HasSuffix(name, "/") || strings.HasSuffix(name, `\`) {
			return "", fmt.Errorf("%w: %q expands to directory %q", ErrEmptyPath, tmpl, name)
		}
		return name, nil
	}
}
