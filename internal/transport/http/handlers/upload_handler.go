package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/vedran77/murmur/internal/domain"
	"github.com/vedran77/murmur/internal/storage"
	"go.uber.org/zap"
)

const multipartMemory = 8 << 20

type UploadHandler struct {
	store    storage.BlobStore
	maxBytes int64
	log      *zap.Logger
}

func NewUploadHandler(store storage.BlobStore, maxBytes int64, log *zap.Logger) *UploadHandler {
	return &UploadHandler{store: store, maxBytes: maxBytes, log: log}
}

// Upload stores the multipart "file" field and returns an attachment
// descriptor the client can put on a message.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// leave room for the multipart framing around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.tooLarge(w)
			return
		}
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "multipart form is required")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "file is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "multipart/") {
		mimeType = "application/octet-stream"
	}

	obj, err := h.store.Put(r.Context(), header.Filename, mimeType, file, h.maxBytes)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.Is(err, storage.ErrTooLarge) || errors.As(err, &tooBig) {
			h.tooLarge(w)
			return
		}
		h.log.Error("upload", zap.String("name", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "operation failed")
		return
	}

	h.log.Debug("stored upload",
		zap.String("key", obj.Key),
		zap.String("size", humanize.Bytes(uint64(obj.Size))),
	)

	writeJSON(w, http.StatusCreated, domain.Attachment{
		URL:      obj.URL,
		Name:     obj.Name,
		MimeType: obj.MimeType,
		Size:     obj.Size,
	})
}

func (h *UploadHandler) tooLarge(w http.ResponseWriter) {
	writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE",
		fmt.Sprintf("file exceeds %s", humanize.Bytes(uint64(h.maxBytes))))
}
