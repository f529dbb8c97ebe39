package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"textilemart/internal/domain/policy"

	"github.com/shopspring/decimal"
)

// 1回の決済の上限（セント）
const maxPaymentCents = 99999999

type PaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
}

// 決済ゲートウェイへの委譲だけを行う
type PaymentUsecase struct {
	gateway  PaymentGateway
	currency string
	log      *slog.Logger
}

func NewPaymentUsecase(gateway PaymentGateway, currency string, log *slog.Logger) *PaymentUsecase {
	if currency == "" {
		currency = "usd"
	}
	return &PaymentUsecase{gateway: gateway, currency: strings.ToLower(currency), log: log}
}

// amountはドル単位の10進数。セントに変換して渡す
func (u *PaymentUsecase) CreateIntent(ctx context.Context, actor policy.Actor, amount string) (PaymentIntent, error) {
	if actor.UserID <= 0 {
		return PaymentIntent{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	cents, err := toCents(amount)
	if err != nil {
		return PaymentIntent{}, err
	}
	if u.gateway == nil {
		u.log.ErrorContext(ctx, "payment gateway not configured")
		return PaymentIntent{}, NewHTTPError(http.StatusBadGateway, "payment failed")
	}

	secret, err := u.gateway.CreatePaymentIntent(ctx, cents, u.currency, map[string]string{
		"userId": strconv.FormatInt(actor.UserID, 10),
	})
	if err != nil {
		u.log.ErrorContext(ctx, "create payment intent failed", "userId", actor.UserID, "amountCents", cents, "error", err)
		return PaymentIntent{}, NewHTTPError(http.StatusBadGateway, "payment failed")
	}
	return PaymentIntent{ClientSecret: secret}, nil
}

func toCents(amount string) (int64, error) {
	a, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, NewHTTPError(http.StatusBadRequest, "invalid amount")
	}
	cents := a.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, NewHTTPError(http.StatusBadRequest, "amount must be > 0")
	}
	if cents.GreaterThan(decimal.NewFromInt(maxPaymentCents)) {
		return 0, NewHTTPError(http.StatusBadRequest, "amount too large")
	}
	return cents.IntPart(), nil
}
