package group

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hmansour/commune/pkg/middleware"
	"github.com/hmansour/commune/pkg/response"
)

// Handler handles HTTP requests for group operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new group handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register wires group endpoints onto the shared groups router
func (h *Handler) Register(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Get("/slug/{slug}", h.GetBySlug)
	r.Patch("/{id}/settings", h.UpdateSettings)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/reconcile", h.Reconcile)
}

// Create handles POST /groups
// @Summary      Create a new group
// @Description  Create a group; the creator becomes its owner and first member
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		response.BadRequest(w, "name is required")
		return
	}

	group, err := h.service.Create(r.Context(), actorID, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidPrivacy) {
			response.BadRequest(w, err.Error())
			return
		}
		h.logger.Error("create group", zap.Error(err))
		response.InternalError(w, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, group.ToResponse())
}

// GetByID handles GET /groups/{id}
// @Summary      Get group by ID
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	group, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		h.logger.Error("get group", zap.Error(err), zap.Int64("group_id", id))
		response.InternalError(w, "Failed to get group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// GetBySlug handles GET /groups/slug/{slug}
// @Summary      Get group by slug
// @Tags         groups
// @Produce      json
// @Param        slug path string true "Group slug"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /groups/slug/{slug} [get]
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		response.BadRequest(w, "Invalid slug")
		return
	}

	group, err := h.service.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		h.logger.Error("get group by slug", zap.Error(err), zap.String("slug", slug))
		response.InternalError(w, "Failed to get group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// UpdateSettings handles PATCH /groups/{id}/settings
// @Summary      Update group settings
// @Description  Partial update; unspecified fields are unchanged. Owner or admin only.
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body UpdateSettingsRequest true "Settings to change"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id}/settings [patch]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	group, err := h.service.UpdateSettings(r.Context(), actorID, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotAuthorized):
			response.Forbidden(w, err.Error())
		default:
			h.logger.Error("update settings", zap.Error(err), zap.Int64("group_id", id))
			response.InternalError(w, "Failed to update group settings")
		}
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// Delete handles DELETE /groups/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	if err := h.service.Delete(r.Context(), actorID, id); err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotAuthorized):
			response.Forbidden(w, err.Error())
		default:
			h.logger.Error("delete group", zap.Error(err), zap.Int64("group_id", id))
			response.InternalError(w, "Failed to delete group")
		}
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Group deleted successfully"})
}

// Reconcile handles POST /groups/{id}/reconcile
// @Summary      Reconcile group counters
// @Description  Recompute member and post counters from records. Owner only.
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=CountersResponse}
// @Router       /groups/{id}/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	memberCount, postCount, err := h.service.Reconcile(r.Context(), actorID, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotAuthorized):
			response.Forbidden(w, err.Error())
		default:
			h.logger.Error("reconcile counters", zap.Error(err), zap.Int64("group_id", id))
			response.InternalError(w, "Failed to reconcile counters")
		}
		return
	}

	response.JSON(w, http.StatusOK, &CountersResponse{MemberCount: memberCount, PostCount: postCount})
}
