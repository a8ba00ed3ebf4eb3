package upload

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ezeehealth/clinicportal-go/internal/api"
	"github.com/ezeehealth/clinicportal-go/internal/appctx"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing;
// larger parts spill to temp files.
const maxMultipartMemory = 8 << 20

// Handler exposes the document upload endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler creates the upload HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes returns the router mounted under /api/document-upload.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/verify/{token}", h.verifyToken)
	r.Post("/{token}", h.upload)
	return r
}

func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	info, err := h.engine.VerifyToken(r.Context(), token)
	if err != nil {
		h.writeTokenError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, File{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	result, err := h.engine.Upload(r.Context(), token, r.FormValue("category"), files)
	if err != nil {
		h.writeUploadError(w, r, result, err)
		return
	}

	// Partial success still creates documents.
	api.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) writeTokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidToken):
		api.WriteError(w, http.StatusNotFound, api.ReasonInvalidToken, "upload link is invalid")
	case errors.Is(err, ErrExpiredToken):
		api.WriteError(w, http.StatusGone, api.ReasonInvalidToken, "upload link has expired")
	default:
		appctx.GetLogger(r.Context()).Error("verify upload token", "error", err)
		api.WriteInternalError(w, "internal error")
	}
}

// noValidFilesResponse carries per-file reasons alongside the envelope
// when the whole batch was rejected.
type noValidFilesResponse struct {
	Error  api.ErrorDetail `json:"error"`
	Errors []FileError     `json:"errors"`
}

func (h *Handler) writeUploadError(w http.ResponseWriter, r *http.Request, result *BatchResult, err error) {
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken):
		h.writeTokenError(w, r, err)
	case errors.Is(err, ErrNoFiles):
		api.WriteBadRequest(w, api.ReasonNoFiles, "no files provided")
	case errors.Is(err, ErrTooManyFiles):
		api.WriteBadRequest(w, api.ReasonTooManyFiles, "too many files in one request")
	case errors.Is(err, ErrNoValidFiles):
		resp := noValidFilesResponse{
			Error: api.ErrorDetail{
				Code:       http.StatusText(http.StatusBadRequest),
				ReasonCode: api.ReasonNoValidFiles,
				Message:    "no files passed validation",
			},
		}
		if result != nil {
			resp.Errors = result.Errors
		}
		api.WriteJSON(w, http.StatusBadRequest, resp)
	default:
		appctx.GetLogger(r.Context()).Error("upload batch", "error", err)
		api.WriteInternalError(w, "internal error")
	}
}
