package handler

import (
	"net/http"

	"textilemart/internal/domain/model"
	"textilemart/internal/middleware"
	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type paymentIntentRequest struct {
	Amount amount `json:"amount"`
}

func (h *PaymentHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	g := api.Group("/payments", authn, middleware.RequireRole(model.RoleBuyer))
	g.POST("/create-payment-intent", h.createIntent)
}

func (h *PaymentHandler) createIntent(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	var req paymentIntentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid amount")
	}

	out, err := h.uc.CreateIntent(c.Request().Context(), actor, string(req.Amount))
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "payment intent created successfully", out)
}
