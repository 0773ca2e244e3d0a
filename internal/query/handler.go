package query

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/membership"
	"github.com/hmansour/commune/pkg/middleware"
	"github.com/hmansour/commune/pkg/response"
)

// Handler handles HTTP requests for the read-side views
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new query handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register wires read-side endpoints onto the shared groups router
func (h *Handler) Register(r chi.Router) {
	r.Get("/{id}/members", h.ListMembers)
	r.Get("/{id}/counts", h.PendingCounts)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotAuthorized):
		response.Forbidden(w, err.Error())
	default:
		h.logger.Error("query failed", zap.Error(err))
		response.InternalError(w, "Internal error")
	}
}

// ListMembers handles GET /groups/{id}/members
// @Summary      List group members
// @Description  Roster with per-viewer relationship context. Moderation statuses require moderator rank.
// @Tags         query
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        status query string false "Status filter" Enums(JOINED, PENDING, INVITED, BANNED)
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]MemberView}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id}/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	status := membership.Status(r.URL.Query().Get("status"))
	switch status {
	case "", membership.StatusJoined, membership.StatusPending, membership.StatusInvited, membership.StatusBanned:
	default:
		response.BadRequest(w, "Invalid status filter")
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

	views, total, err := h.service.ListMembers(r.Context(), viewerID, groupID, status, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSONWithMeta(w, http.StatusOK, views, response.NewMeta(page, limit, total))
}

// PendingCounts handles GET /groups/{id}/counts
// @Summary      Get pending moderation counts
// @Description  Join requests and posts awaiting decision. Moderator and above.
// @Tags         query
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=PendingCounts}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id}/counts [get]
func (h *Handler) PendingCounts(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	counts, err := h.service.PendingCounts(r.Context(), viewerID, groupID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, counts)
}
