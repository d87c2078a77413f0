package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/types"
)

const (
	formFieldFile     = "file"
	multipartOverhead = 1 << 20
)

// UploadHandler accepts evidence files and serves them back.
type UploadHandler struct {
	attachmentService *services.AttachmentService
	maxBytes          int64
}

func NewUploadHandler(attachmentService *services.AttachmentService, maxFileSize int64) *UploadHandler {
	return &UploadHandler{
		attachmentService: attachmentService,
		maxBytes:          maxFileSize + multipartOverhead,
	}
}

// UploadRouter registers the authenticated upload endpoint.
func UploadRouter(r chi.Router, handler *UploadHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Post("/", handler.Upload)
}

// Upload stores the multipart "file" field and returns its metadata. The
// part is streamed so the name is checked before any of the body is read.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	part, err := nextFilePart(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "No file provided")
		case errors.As(err, &tooLarge):
			writeServiceError(w, r, h.attachmentService.TooLarge(), "file", "upload file")
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart form")
		}
		return
	}
	defer part.Close()

	name := part.FileName()
	if name == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if err := h.attachmentService.CheckName(name); err != nil {
		writeServiceError(w, r, err, "file", "upload file")
		return
	}

	maxSize := h.attachmentService.MaxSize()
	data, err := io.ReadAll(io.LimitReader(part, maxSize+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, h.attachmentService.TooLarge(), "file", "upload file")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if int64(len(data)) > maxSize {
		writeServiceError(w, r, h.attachmentService.TooLarge(), "file", "upload file")
		return
	}

	attachment, err := h.attachmentService.Store(r.Context(), name, part.Header.Get("Content-Type"), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		writeServiceError(w, r, err, "file", "upload file")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Message: "File uploaded successfully",
		File: UploadedFile{
			Attachment: attachment,
			UploadedAt: time.Now().UTC(),
		},
	})
}

// nextFilePart skips parts until the "file" field. io.EOF means the form
// has no such field.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == formFieldFile {
			return part, nil
		}
		_ = part.Close()
	}
}

// ServeFile streams a stored attachment. The wildcard holds the object key.
func (h *UploadHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rc, info, err := h.attachmentService.Open(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, r, err, "file", "load file")
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

type UploadedFile struct {
	types.Attachment
	UploadedAt time.Time `json:"uploaded_at"`
}

type UploadResponse struct {
	Message string       `json:"message"`
	File    UploadedFile `json:"file"`
}
