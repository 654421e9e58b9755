package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/messenger-cosmos-public/bridge/internal/presence"
	"github.com/messenger-cosmos-public/bridge/internal/validation"
)

// Handler serves read-only operator views of the presence registries.
type Handler struct {
	clients   *presence.Registry
	groups    *presence.GroupStore
	validator *validation.Validator
}

func NewHandler(router *presence.Router, v *validation.Validator) *Handler {
	return &Handler{clients: router.Clients(), groups: router.Groups(), validator: v}
}

type groupURI struct {
	GroupID string `uri:"groupId" validate:"required,max=128"`
}

type clientURI struct {
	ClientID string `uri:"clientId" validate:"required,uuid"`
}

func (h *Handler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListClients(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"clients": h.clients.All()})
}

func (h *Handler) GetClient(ctx *gin.Context) {
	var req clientURI
	if err := ctx.ShouldBindUri(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.validator.ValidateStruct(ctx, req) {
		return
	}
	s, ok := h.clients.Get(req.ClientID)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": presence.ErrClientNotFound.Error()})
		return
	}
	ctx.JSON(http.StatusOK, s)
}

func (h *Handler) ListGroups(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"groups": h.groups.All()})
}

func (h *Handler) GetGroup(ctx *gin.Context) {
	req, ok := h.bindGroup(ctx)
	if !ok {
		return
	}
	ch, ok := h.groups.Get(req.GroupID)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": presence.ErrGroupNotFound.Error()})
		return
	}
	ctx.JSON(http.StatusOK, ch)
}

func (h *Handler) ListGroupMembers(ctx *gin.Context) {
	req, ok := h.bindGroup(ctx)
	if !ok {
		return
	}
	members, ok := h.groups.MembersOf(req.GroupID)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": presence.ErrGroupNotFound.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"groupId": req.GroupID, "members": members})
}

func (h *Handler) bindGroup(ctx *gin.Context) (groupURI, bool) {
	var req groupURI
	if err := ctx.ShouldBindUri(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, h.validator.ValidateStruct(ctx, req)
}
