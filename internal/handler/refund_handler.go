package handler

import (
	"net/http"

	"textilemart/internal/domain/model"
	"textilemart/internal/middleware"
	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type RefundHandler struct {
	uc *usecase.RefundUsecase
}

func NewRefundHandler(uc *usecase.RefundUsecase) *RefundHandler {
	return &RefundHandler{uc: uc}
}

type refundCreateRequest struct {
	OrderID int64  `json:"orderId"`
	Reason  string `json:"reason"`
}

type refundUpdateRequest struct {
	Status *string `json:"status"`
	Reason *string `json:"reason"`
}

func (h *RefundHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	g := api.Group("/refunds", authn)

	buyer := middleware.RequireRole(model.RoleBuyer)
	g.POST("", h.create, buyer)
	g.GET("/get", h.listMine, buyer)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.GET("", h.listAll, admin)
	g.GET("/:id", h.detail, admin)
	g.PUT("/:id", h.update, admin)
	g.DELETE("/:id", h.delete, admin)
}

func (h *RefundHandler) create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	var req refundCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	r, err := h.uc.Create(c.Request().Context(), actor, usecase.CreateRefundInput{OrderID: req.OrderID, Reason: req.Reason})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusCreated, "refund request created successfully", r)
}

func (h *RefundHandler) listMine(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.uc.ListMine(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "refunds fetched successfully", list)
}

func (h *RefundHandler) listAll(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.uc.ListAll(c.Request().Context(), actor, c.QueryParam("status"))
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "refunds fetched successfully", list)
}

func (h *RefundHandler) detail(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	r, err := h.uc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "refund fetched successfully", r)
}

func (h *RefundHandler) update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req refundUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	r, err := h.uc.Update(c.Request().Context(), actor, id, usecase.UpdateRefundInput{Status: req.Status, Reason: req.Reason})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "refund updated successfully", r)
}

func (h *RefundHandler) delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.uc.Delete(c.Request().Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "refund deleted successfully", nil)
}
