package handler

import (
	"net/http"

	"textilemart/internal/domain/model"
	"textilemart/internal/middleware"
	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type orderCreateRequest struct {
	Product         int64                 `json:"product"`
	Quantity        int64                 `json:"quantity"`
	TotalPrice      amount                `json:"totalPrice"`
	PaymentMethod   string                `json:"paymentMethod"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

// Stripe等の決済結果（全て任意）
type markPaidRequest struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

func (h *OrderHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	g := api.Group("/orders", authn)

	buyer := middleware.RequireRole(model.RoleBuyer)
	g.POST("", h.create, buyer)
	g.GET("/myorders", h.listMine, buyer)
	g.PUT("/cancel/:id", h.cancel, buyer)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.GET("", h.listAll, admin)
	g.DELETE("/:id", h.delete, admin)

	// ロール/持ち主の判定はusecase側
	g.GET("/:id", h.detail)
	g.PUT("/status/:id", h.updateStatus)
	g.PUT("/pay/:id", h.markPaid)
}

func (h *OrderHandler) create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	var req orderCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.Create(c.Request().Context(), actor, usecase.CreateOrderInput{
		ProductID:       req.Product,
		Quantity:        req.Quantity,
		TotalPrice:      string(req.TotalPrice),
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusCreated, "order and delivery created successfully", out)
}

func (h *OrderHandler) listMine(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	in, err := listOrdersInput(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.ListMine(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "my orders fetched successfully", out)
}

func (h *OrderHandler) listAll(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	in, err := listOrdersInput(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.ListAll(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "all orders fetched successfully", out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	o, err := h.uc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "order fetched successfully", o)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req orderStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	o, err := h.uc.UpdateStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "order status updated successfully", o)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	o, err := h.uc.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "order cancelled successfully", o)
}

func (h *OrderHandler) markPaid(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req markPaidRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}

	o, err := h.uc.MarkPaid(c.Request().Context(), actor, id, usecase.MarkPaidInput{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.EmailAddress,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "order marked as paid successfully", o)
}

func (h *OrderHandler) delete(c echo.Context) error {
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
	return respond(c, http.StatusOK, "order deleted successfully", nil)
}

func listOrdersInput(c echo.Context) (usecase.ListOrdersInput, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return usecase.ListOrdersInput{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return usecase.ListOrdersInput{}, err
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return usecase.ListOrdersInput{}, err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return usecase.ListOrdersInput{}, err
	}
	return usecase.ListOrdersInput{Page: page, Limit: limit, Status: c.QueryParam("status"), From: from, To: to}, nil
}
