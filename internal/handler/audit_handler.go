package handler

import (
	"net/http"

	"textilemart/internal/domain/model"
	"textilemart/internal/middleware"
	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
)

// GET /admin/audit-logs
type AuditHandler struct {
	uc *usecase.AuditUsecase
}

func NewAuditHandler(uc *usecase.AuditUsecase) *AuditHandler {
	return &AuditHandler{uc: uc}
}

func (h *AuditHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	g := api.Group("/admin", authn, middleware.RequireRole(model.RoleAdmin))
	g.GET("/audit-logs", h.list)
}

func (h *AuditHandler) list(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}

	in := usecase.ListAuditLogsInput{
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
	}
	if in.ActorUserID, err = queryInt64Ptr(c, "actor_user_id"); err != nil {
		return writeError(c, err)
	}
	if in.ResourceID, err = queryInt64Ptr(c, "resource_id"); err != nil {
		return writeError(c, err)
	}
	if in.From, err = queryTime(c, "from"); err != nil {
		return writeError(c, err)
	}
	if in.To, err = queryTime(c, "to"); err != nil {
		return writeError(c, err)
	}
	if in.Limit, err = queryInt(c, "limit"); err != nil {
		return writeError(c, err)
	}
	if in.Offset, err = queryInt(c, "offset"); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.List(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "audit logs fetched successfully", out)
}
