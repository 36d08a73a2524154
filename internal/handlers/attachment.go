package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/bloghub/apiserver/internal/services"
	"github.com/bloghub/apiserver/internal/store"
	"github.com/bloghub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxUploadMemory    = 32 << 20
	maxAttachmentBytes = 32 << 20
	formFieldFile      = "file"
)

// AttachmentHandler provides HTTP handlers for post attachments. Uploads
// and deletes require the caller to own the parent post.
type AttachmentHandler struct {
	attachmentService *services.AttachmentService
	postService       *services.PostService
}

// NewAttachmentHandler constructs a handler with the provided services.
func NewAttachmentHandler(attachmentService *services.AttachmentService, postService *services.PostService) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		postService:       postService,
	}
}

// PostAttachmentRouter registers the post-scoped attachment routes
// (list and upload under /posts/{postID}/attachments).
func PostAttachmentRouter(
	r chi.Router,
	attachmentService *services.AttachmentService,
	postService *services.PostService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAttachmentHandler(attachmentService, postService)

	r.Get("/", handler.ListAttachments)
	r.With(authMiddleware).Post("/", handler.UploadAttachment)
}

// AttachmentRouter registers the attachment routes under /attachments/{attachmentID}.
func AttachmentRouter(
	r chi.Router,
	attachmentService *services.AttachmentService,
	postService *services.PostService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAttachmentHandler(attachmentService, postService)

	r.Route("/{attachmentID}", func(r chi.Router) {
		r.Get("/", handler.DownloadAttachment)
		r.With(authMiddleware).Delete("/", handler.DeleteAttachment)
	})
}

func (h *AttachmentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	if _, err := h.postService.Get(r.Context(), postID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	attachments, err := h.attachmentService.ListByPost(r.Context(), postID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, AttachmentListResponse{Attachments: attachments})
}

func (h *AttachmentHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	postID, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	post, err := h.postService.Get(r.Context(), postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if post.AuthorID != userID {
		writeError(w, http.StatusForbidden, "Not authorized to modify this post")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	data, err := readFileLimited(file, maxAttachmentBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachment, err := h.attachmentService.Upload(
		r.Context(),
		postID,
		header.Filename,
		header.Header.Get("Content-Type"),
		data,
	)
	if err != nil {
		if errors.Is(err, services.ErrStorageDisabled) {
			writeError(w, http.StatusServiceUnavailable, "Attachments are not enabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentResponse{
		Message:    "Attachment uploaded",
		Attachment: attachment,
	})
}

func (h *AttachmentHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusNotFound, "Attachment not found")
		return
	}

	attachment, reader, err := h.attachmentService.Open(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Attachment not found")
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusServiceUnavailable, "Attachments are not enabled")
		default:
			writeError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}
	defer reader.Close()

	if attachment.ContentType != "" {
		w.Header().Set("Content-Type", attachment.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	id, err := parseIDParam(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusNotFound, "Attachment not found")
		return
	}

	attachment, err := h.attachmentService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Attachment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	post, err := h.postService.Get(r.Context(), attachment.PostID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if post.AuthorID != userID {
		writeError(w, http.StatusForbidden, "Not authorized to modify this post")
		return
	}

	if err := h.attachmentService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrStorageDisabled) {
			writeError(w, http.StatusServiceUnavailable, "Attachments are not enabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Attachment deleted"})
}

type AttachmentListResponse struct {
	Attachments []types.Attachment `json:"attachments"`
}

type AttachmentResponse struct {
	Message    string           `json:"message"`
	Attachment types.Attachment `json:"attachment"`
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("Failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("Uploaded file too large")
	}
	return data, nil
}
