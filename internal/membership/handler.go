package membership

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/policy"
	"github.com/hmansour/commune/pkg/middleware"
	"github.com/hmansour/commune/pkg/response"
)

// Handler handles HTTP requests for membership operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new membership handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register wires membership endpoints onto the shared groups router
func (h *Handler) Register(r chi.Router) {
	r.Post("/{id}/join", h.RequestJoin)
	r.Delete("/{id}/join", h.CancelJoin)
	r.Post("/{id}/leave", h.Leave)
	r.Post("/{id}/invites", h.Invite)
	r.Post("/{id}/transfer-ownership", h.TransferOwnership)
	r.Patch("/{id}/membership", h.UpdateOwnSettings)
	r.Post("/{id}/members/{userID}/decision", h.Decide)
	r.Delete("/{id}/members/{userID}", h.Remove)
	r.Post("/{id}/members/{userID}/promote", h.Promote)
	r.Post("/{id}/members/{userID}/demote", h.Demote)
	r.Post("/{id}/members/{userID}/ban", h.Ban)
}

// writeError maps service errors onto stable response kinds
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, group.ErrGroupNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrBanned):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrDuplicateRequest),
		errors.Is(err, ErrStaleRole):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrOwnerMustTransfer), errors.Is(err, ErrInvalidTransition):
		response.InvalidTransition(w, err.Error())
	default:
		h.logger.Error("membership operation failed", zap.Error(err))
		response.InternalError(w, "Internal error")
	}
}

func requestIDs(r *http.Request) (actorID, groupID int64, ok bool) {
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

func targetUserID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

// RequestJoin handles POST /groups/{id}/join
// @Summary      Request to join a group
// @Description  Public groups admit immediately; private and closed groups queue a pending request
// @Tags         membership
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      201 {object} response.APIResponse{data=MembershipResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{id}/join [post]
func (h *Handler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	member, err := h.service.RequestJoin(r.Context(), groupID, actorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, member.ToResponse())
}

// CancelJoin handles DELETE /groups/{id}/join
func (h *Handler) CancelJoin(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	if err := h.service.CancelJoin(r.Context(), groupID, actorID); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Join request cancelled"})
}

// Leave handles POST /groups/{id}/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	if err := h.service.Leave(r.Context(), groupID, actorID); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Left group"})
}

// Invite handles POST /groups/{id}/invites
// @Summary      Invite a user to the group
// @Tags         membership
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body InviteRequest true "User to invite"
// @Success      201 {object} response.APIResponse{data=MembershipResponse}
// @Router       /groups/{id}/invites [post]
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.Invite(r.Context(), groupID, actorID, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, member.ToResponse())
}

// Decide handles POST /groups/{id}/members/{userID}/decision
// @Summary      Accept or reject a pending join request
// @Tags         membership
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        userID path int true "Requesting user ID"
// @Param        request body DecideRequest true "Decision"
// @Success      200 {object} response.APIResponse{data=MembershipResponse}
// @Router       /groups/{id}/members/{userID}/decision [post]
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}
	userID, err := targetUserID(r)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.Decide(r.Context(), groupID, actorID, userID, req.Accept)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if member == nil {
		response.JSON(w, http.StatusOK, map[string]string{"message": "Join request rejected"})
		return
	}
	response.JSON(w, http.StatusOK, member.ToResponse())
}

// Remove handles DELETE /groups/{id}/members/{userID}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}
	userID, err := targetUserID(r)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	if err := h.service.Remove(r.Context(), groupID, actorID, userID); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member removed"})
}

// Promote handles POST /groups/{id}/members/{userID}/promote
// @Summary      Promote a member one rung
// @Description  Owner only. MEMBER to MODERATOR or MODERATOR to ADMIN.
// @Tags         membership
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        userID path int true "Target user ID"
// @Param        request body RoleChangeRequest true "Destination role"
// @Success      200 {object} response.APIResponse{data=MembershipResponse}
// @Router       /groups/{id}/members/{userID}/promote [post]
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, h.service.Promote)
}

// Demote handles POST /groups/{id}/members/{userID}/demote
func (h *Handler) Demote(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, h.service.Demote)
}

func (h *Handler) roleChange(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, groupID, actorID, targetUserID int64, to policy.Role) (*Membership, error)) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}
	userID, err := targetUserID(r)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req RoleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if !req.Role.Valid() {
		response.BadRequest(w, "Invalid role")
		return
	}

	member, err := op(r.Context(), groupID, actorID, userID, req.Role)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, member.ToResponse())
}

// Ban handles POST /groups/{id}/members/{userID}/ban
// @Summary      Ban a member
// @Description  Moderator and above, strictly down-rank. Bans are permanent.
// @Tags         membership
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        userID path int true "Target user ID"
// @Success      200 {object} response.APIResponse
// @Router       /groups/{id}/members/{userID}/ban [post]
func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}
	userID, err := targetUserID(r)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	if err := h.service.Ban(r.Context(), groupID, actorID, userID); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member banned"})
}

// TransferOwnership handles POST /groups/{id}/transfer-ownership
// @Summary      Transfer group ownership to an admin
// @Tags         membership
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body TransferOwnershipRequest true "Incoming owner"
// @Success      200 {object} response.APIResponse
// @Router       /groups/{id}/transfer-ownership [post]
func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	var req TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.TransferOwnership(r.Context(), groupID, actorID, req.UserID); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Ownership transferred"})
}

// UpdateOwnSettings handles PATCH /groups/{id}/membership
func (h *Handler) UpdateOwnSettings(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := requestIDs(r)
	if !ok {
		response.BadRequest(w, "Invalid request")
		return
	}

	var req UpdateOwnSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.UpdateOwnSettings(r.Context(), groupID, actorID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, member.ToResponse())
}
