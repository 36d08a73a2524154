package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bloghub/apiserver/internal/services"
	"github.com/bloghub/apiserver/internal/store"
	"github.com/bloghub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// CommentHandler provides HTTP handlers for comments.
type CommentHandler struct {
	commentService *services.CommentService
}

// NewCommentHandler constructs a handler with the provided service.
func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// PostCommentRouter registers the post-scoped comment routes
// (list and create under /posts/{postID}/comments).
func PostCommentRouter(r chi.Router, commentService *services.CommentService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewCommentHandler(commentService)

	r.Get("/", handler.ListComments)
	r.With(authMiddleware).Post("/", handler.CreateComment)
}

// CommentRouter registers the comment mutation routes under /comments/{commentID}.
func CommentRouter(r chi.Router, commentService *services.CommentService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewCommentHandler(commentService)

	r.Route("/{commentID}", func(r chi.Router) {
		r.With(authMiddleware).Put("/", handler.UpdateComment)
		r.With(authMiddleware).Delete("/", handler.DeleteComment)
	})
}

func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	page, limit, offset := parsePagination(r)

	comments, total, err := h.commentService.ListByPost(r.Context(), postID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, CommentListResponse{
		Comments:   comments,
		Pagination: newPagination(page, limit, total),
	})
}

func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
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

	req, err := decodeCommentRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.commentService.Create(r.Context(), types.Comment{
		PostID:   postID,
		AuthorID: userID,
		Content:  req.Content,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	// Echo the comment back with the author expanded, matching the list
	// and fetch representations.
	view, err := h.commentService.GetView(r.Context(), created.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, CommentViewResponse{
		Message: "Comment successfully posted",
		Comment: view,
	})
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	id, err := parseIDParam(r, "commentID")
	if err != nil {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}

	req, err := decodeCommentRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if comment.AuthorID != userID {
		writeError(w, http.StatusForbidden, "Not authorized to update this comment")
		return
	}

	comment.Content = req.Content
	updated, err := h.commentService.Update(r.Context(), comment)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, CommentMutationResponse{
		Message: "Comment successfully updated",
		Comment: updated,
	})
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	id, err := parseIDParam(r, "commentID")
	if err != nil {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}

	comment, err := h.commentService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if comment.AuthorID != userID {
		writeError(w, http.StatusForbidden, "Not authorized to delete this comment")
		return
	}

	if err := h.commentService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Comment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Comment successfully deleted"})
}

type CommentRequest struct {
	Content string `json:"content"`
}

type CommentListResponse struct {
	Comments   []types.CommentView `json:"comments"`
	Pagination Pagination          `json:"pagination"`
}

type CommentViewResponse struct {
	Message string            `json:"message"`
	Comment types.CommentView `json:"comment"`
}

type CommentMutationResponse struct {
	Message string        `json:"message"`
	Comment types.Comment `json:"comment"`
}

func decodeCommentRequest(r *http.Request) (CommentRequest, error) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return CommentRequest{}, errors.New("Content is required")
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return CommentRequest{}, errors.New("Content is required")
	}
	return req, nil
}
