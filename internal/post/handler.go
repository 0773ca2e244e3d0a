package post

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/pkg/middleware"
	"github.com/hmansour/commune/pkg/response"
)

// Handler handles HTTP requests for post moderation
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new post handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register wires post endpoints onto the shared groups router
func (h *Handler) Register(r chi.Router) {
	r.Post("/{id}/posts", h.Submit)
	r.Get("/{id}/posts/pending", h.ListPending)
	r.Post("/{id}/posts/{postID}/approve", h.Approve)
	r.Post("/{id}/posts/{postID}/reject", h.Reject)
	r.Delete("/{id}/posts/{postID}", h.Delete)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, group.ErrGroupNotFound), errors.Is(err, ErrPostNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrPostingDisabled):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrNotPending):
		response.InvalidTransition(w, err.Error())
	case errors.Is(err, ErrEmptyBody):
		response.BadRequest(w, err.Error())
	default:
		h.logger.Error("post operation failed", zap.Error(err))
		response.InternalError(w, "Internal error")
	}
}

func pathIDs(r *http.Request) (actorID, groupID int64, ok bool) {
	actorID, ok = middleware.GetUserID(r.Context())
	if !ok {
		return 0, 0, false
	}
	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return actorID, groupID, true
}

// Submit handles POST /groups/{id}/posts
// @Summary      Submit a post to a group
// @Description  Members enter the moderation queue when the group requires approval; moderators publish directly
// @Tags         posts
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body SubmitPostRequest true "Post content"
// @Success      201 {object} response.APIResponse{data=PostResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id}/posts [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := pathIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	var req SubmitPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	post, err := h.service.Submit(r.Context(), groupID, actorID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, post.ToResponse())
}

// Approve handles POST /groups/{id}/posts/{postID}/approve
// @Summary      Approve a pending post
// @Tags         posts
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        postID path int true "Post ID"
// @Success      200 {object} response.APIResponse{data=PostResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{id}/posts/{postID}/approve [post]
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.Approve)
}

// Reject handles POST /groups/{id}/posts/{postID}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.Reject)
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, groupID, actorID, postID int64) (*Post, error)) {
	actorID, groupID, ok := pathIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid post ID")
		return
	}

	post, err := op(r.Context(), groupID, actorID, postID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, post.ToResponse())
}

// Delete handles DELETE /groups/{id}/posts/{postID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := pathIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid post ID")
		return
	}

	if err := h.service.Delete(r.Context(), groupID, actorID, postID); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

// ListPending handles GET /groups/{id}/posts/pending
// @Summary      List the moderation queue
// @Tags         posts
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]PostResponse}
// @Router       /groups/{id}/posts/pending [get]
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := pathIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	posts, total, err := h.service.ListPending(r.Context(), groupID, actorID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]*PostResponse, len(posts))
	for i, p := range posts {
		items[i] = p.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, items, response.NewMeta(page, limit, total))
}
