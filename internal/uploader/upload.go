package uploader

// Upload is an upload that has been moved into place.
type Upload struct {
	// Path is the full path of the stored file, including the base path of
	// the Uploader.
	Path string `json:"path"`
	// RelativePath is Path relative to the base path of the Uploader.
	RelativePath string `json:"relative_path"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`

	File File `json:"-"`
}
