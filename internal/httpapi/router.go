package httpapi

import (
	"net/http"

	"github.com/go-git/go-billy/v5"

	"github.com/basilfx/uploader/internal/config"
	"github.com/basilfx/uploader/internal/recordstore"
)

func NewRouter(cfg *config.Config, fs billy.Filesystem, store recordstore.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/upload", UploadHandler(cfg, fs, store))
	mux.Handle("/uploads", UploadInfoHandler(store))
	mux.Handle("/swagger/", SwaggerHandler())
	return mux
}
