package httpapi

import (
	"net/http"

	"github.com/basilfx/uploader/internal/recordstore"
	"github.com/basilfx/uploader/internal/storage"
)

// UploadInfoHandler lists the uploads saved by one request.
func UploadInfoHandler(store recordstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if store == nil {
			writeError(w, http.StatusNotImplemented, "upload records are disabled")
			return
		}

		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing id")
			return
		}

		records, err := store.ListByRequest(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load uploads")
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}

		storage.WriteJSON(w, map[string]any{
			"request_id": id,
			"uploads":    records,
		})
	}
}
