package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/basilfx/uploader/internal/config"
	"github.com/basilfx/uploader/internal/recordstore"
	"github.com/basilfx/uploader/internal/storage"
	"github.com/basilfx/uploader/internal/uploader"
)

type savedUpload struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
}

type uploadResponse struct {
	RequestID string                 `json:"request_id"`
	Uploads   map[string]savedUpload `json:"uploads"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newUploader(cfg *config.Config, fs billy.Filesystem, log logrus.FieldLogger) *uploader.Uploader {
	opts := []uploader.Option{
		uploader.WithFileMode(cfg.FileMode()),
		uploader.WithDirectoryMode(cfg.DirectoryMode()),
		uploader.WithLogger(log),
	}
	if fs != nil {
		opts = append(opts, uploader.WithFilesystem(fs))
	}

	u := uploader.New(cfg.Paths().Files, opts...)
	for _, r := range cfg.Uploads.Rules {
		u.Add(r.Key, uploader.Rule{
			Name:     uploader.TemplateName(r.Name),
			Types:    r.Types,
			Optional: r.Optional,
		})
	}
	return u
}

// UploadHandler accepts the multipart uploads configured in cfg. Files are
// written to fs, or to the files directory on disk when fs is nil. Saved
// uploads are recorded in store unless it is nil.
func UploadHandler(cfg *config.Config, fs billy.Filesystem, store recordstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		requestID := uuid.New().String()
		log := logrus.WithField("request_id", requestID)

		if cfg.Uploads.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.Uploads.MaxBodyBytes)
		}
		defer r.Body.Close()

		files, err := uploader.FilesFromRequest(r, cfg.Uploads.MaxMemory)
		if r.MultipartForm != nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			log.WithError(err).Debug("invalid multipart body")
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}

		u := newUploader(cfg, fs, log)

		if err := u.Validate(files); err != nil {
			switch {
			case errors.Is(err, uploader.ErrMissingUpload):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, uploader.ErrTypeNotAccepted):
				writeError(w, http.StatusUnsupportedMediaType, err.Error())
			default:
				log.WithError(err).Error("validate uploads")
				writeError(w, http.StatusInternalServerError, "failed to read uploads")
			}
			return
		}

		saved, err := u.Save()
		if err != nil {
			log.WithError(err).Error("save uploads")
			writeError(w, http.StatusInternalServerError, "failed to save uploads")
			return
		}

		now := time.Now().UTC()
		resp := uploadResponse{RequestID: requestID, Uploads: map[string]savedUpload{}}
		records := make([]recordstore.Record, 0, len(saved))
		for key, up := range saved {
			rec := recordstore.Record{
				ID:           uuid.New().String(),
				RequestID:    requestID,
				Key:          key,
				Filename:     up.File.Filename(),
				Path:         up.Path,
				RelativePath: up.RelativePath,
				Size:         up.Size,
				ContentType:  up.ContentType,
				CreatedAt:    now,
			}
			records = append(records, rec)
			resp.Uploads[key] = savedUpload{
				ID:           rec.ID,
				Filename:     rec.Filename,
				RelativePath: rec.RelativePath,
				Size:         rec.Size,
				ContentType:  rec.ContentType,
			}
		}

		if store != nil && len(records) > 0 {
			if err := store.Insert(r.Context(), records...); err != nil {
				log.WithError(err).Error("record uploads")
				writeError(w, http.StatusInternalServerError, "failed to record uploads")
				return
			}
		}

		log.WithField("count", len(saved)).Info("request uploads saved")
		storage.WriteJSONStatus(w, http.StatusCreated, resp)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	storage.WriteJSONStatus(w, status, errorResponse{Error: msg})
}
