package handler

import (
	"net/http"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/middleware"
	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type DeliveryHandler struct {
	uc *usecase.DeliveryUsecase
}

func NewDeliveryHandler(uc *usecase.DeliveryUsecase) *DeliveryHandler {
	return &DeliveryHandler{uc: uc}
}

type deliveryCreateRequest struct {
	Order          int64      `json:"order"`
	DeliveryPerson string     `json:"deliveryPerson"`
	DeliveryStatus string     `json:"deliveryStatus"`
	DeliveryDate   *time.Time `json:"deliveryDate"`
	TrackingNumber string     `json:"trackingNumber"`
}

type deliveryUpdateRequest struct {
	DeliveryPerson *string    `json:"deliveryPerson"`
	DeliveryStatus *string    `json:"deliveryStatus"`
	DeliveryDate   *time.Time `json:"deliveryDate"`
	TrackingNumber *string    `json:"trackingNumber"`
}

func (h *DeliveryHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	g := api.Group("/deliveries", authn)

	courier := middleware.RequireRole(model.RoleDelivery)
	g.POST("", h.create, courier)
	g.GET("", h.list, courier)
	g.GET("/:id", h.detail, courier)
	g.PUT("/:id", h.update, courier)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.GET("/admin", h.listAll, admin)
	g.PUT("/admin/:id", h.update, admin)
	g.DELETE("/:id", h.delete, admin)
}

func (h *DeliveryHandler) create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	var req deliveryCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	d, err := h.uc.Create(c.Request().Context(), actor, usecase.CreateDeliveryInput{
		OrderID:        req.Order,
		DeliveryPerson: req.DeliveryPerson,
		DeliveryStatus: req.DeliveryStatus,
		DeliveryDate:   req.DeliveryDate,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusCreated, "delivery created successfully", d)
}

// 自分の担当と未割当だけ
func (h *DeliveryHandler) list(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.uc.List(c.Request().Context(), actor, c.QueryParam("status"))
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "deliveries fetched successfully", list)
}

func (h *DeliveryHandler) listAll(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.uc.ListAll(c.Request().Context(), actor, c.QueryParam("status"))
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "deliveries fetched successfully", list)
}

func (h *DeliveryHandler) detail(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	d, err := h.uc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "delivery fetched successfully", d)
}

func (h *DeliveryHandler) update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req deliveryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	d, err := h.uc.Update(c.Request().Context(), actor, id, usecase.UpdateDeliveryInput{
		DeliveryPerson: req.DeliveryPerson,
		DeliveryStatus: req.DeliveryStatus,
		TrackingNumber: req.TrackingNumber,
		DeliveryDate:   req.DeliveryDate,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "delivery updated successfully", d)
}

func (h *DeliveryHandler) delete(c echo.Context) error {
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
	return respond(c, http.StatusOK, "delivery deleted successfully", nil)
}
