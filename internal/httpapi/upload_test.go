package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basilfx/uploader/internal/config"
	"github.com/basilfx/uploader/internal/recordstore"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type part struct {
	field, filename string
	content         []byte
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Uploads.Path = "/srv/uploads"
	cfg.Uploads.MaxBodyBytes = 1 << 20
	cfg.Uploads.Rules = []config.Rule{
		{Key: "avatar", Name: "avatars/{key}{ext}", Types: []string{"image/*"}},
		{Key: "notes", Name: "notes/{filename}", Optional: true},
	}
	return cfg
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler(t *testing.T) {
	fs := memfs.New()
	store := recordstore.NewMemory()
	router := NewRouter(testConfig(t), fs, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t,
		part{"avatar", "Me.PNG", pngHeader},
		part{"notes", "todo.txt", []byte("buy milk")},
	))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RequestID)
	require.Len(t, resp.Uploads, 2)

	avatar := resp.Uploads["avatar"]
	assert.Equal(t, "avatars/avatar.png", avatar.RelativePath)
	assert.Equal(t, "Me.PNG", avatar.Filename)
	assert.Equal(t, "image/png", avatar.ContentType)
	assert.Equal(t, int64(len(pngHeader)), avatar.Size)

	data, err := util.ReadFile(fs, "notes/todo.txt")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", string(data))

	records, err := store.ListByRequest(context.Background(), resp.RequestID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "avatar", records[0].Key)
	assert.Equal(t, "/srv/uploads/files/avatars/avatar.png", records[0].Path)

	info := httptest.NewRecorder()
	router.ServeHTTP(info, httptest.NewRequest(http.MethodGet, "/uploads?id="+resp.RequestID, nil))
	require.Equal(t, http.StatusOK, info.Code)

	var listed struct {
		RequestID string               `json:"request_id"`
		Uploads   []recordstore.Record `json:"uploads"`
	}
	require.NoError(t, json.Unmarshal(info.Body.Bytes(), &listed))
	assert.Equal(t, resp.RequestID, listed.RequestID)
	require.Len(t, listed.Uploads, 2)
	assert.Equal(t, avatar.ID, listed.Uploads[0].ID)
	assert.Empty(t, listed.Uploads[0].Path)
}

func TestUploadHandlerMissingRequired(t *testing.T) {
	fs := memfs.New()
	store := recordstore.NewMemory()
	handler := UploadHandler(testConfig(t), fs, store)

	rec := httptest.NewRecorder()
	handler(rec, multipartRequest(t, part{"notes", "todo.txt", []byte("buy milk")}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "avatar")

	_, err := fs.Stat("notes/todo.txt")
	assert.Error(t, err, "optional upload must not be stored when a required one is missing")
}

func TestUploadHandlerTypeNotAccepted(t *testing.T) {
	handler := UploadHandler(testConfig(t), memfs.New(), nil)

	rec := httptest.NewRecorder()
	handler(rec, multipartRequest(t, part{"avatar", "me.png", []byte("not an image")}))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadHandlerNotMultipart(t *testing.T) {
	handler := UploadHandler(testConfig(t), memfs.New(), nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerBodyTooLarge(t *testing.T) {
	fs := memfs.New()
	cfg := testConfig(t)
	cfg.Uploads.MaxBodyBytes = 64
	handler := UploadHandler(cfg, fs, nil)

	rec := httptest.NewRecorder()
	handler(rec, multipartRequest(t, part{"avatar", "me.png", bytes.Repeat([]byte("x"), 4<<10)}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"request body too large"}`, rec.Body.String())

	_, err := fs.Stat("avatars/avatar.png")
	assert.Error(t, err)
}

func TestUploadHandlerMethod(t *testing.T) {
	handler := UploadHandler(testConfig(t), memfs.New(), nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadHandlerUnsafeName(t *testing.T) {
	cfg := testConfig(t)
	cfg.Uploads.Rules = []config.Rule{{Key: "doc", Name: "../{filename}"}}
	handler := UploadHandler(cfg, memfs.New(), nil)

	rec := httptest.NewRecorder()
	handler(rec, multipartRequest(t, part{"doc", "a.txt", []byte("x")}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUploadInfoHandler(t *testing.T) {
	tests := []struct {
		name  string
		store recordstore.Store
		url   string
		want  int
	}{
		{name: "disabled", store: nil, url: "/uploads?id=x", want: http.StatusNotImplemented},
		{name: "missing id", store: recordstore.NewMemory(), url: "/uploads", want: http.StatusBadRequest},
		{name: "unknown", store: recordstore.NewMemory(), url: "/uploads?id=x", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			UploadInfoHandler(tt.store)(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSwaggerDoc(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(testConfig(t), memfs.New(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/upload")
}
