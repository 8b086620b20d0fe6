package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/shopspring/decimal"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключи метаданных для связи PaymentIntent с нашими сущностями
	metadataPaymentIDKey      = "payment_id"
	metadataSubscriberIDKey   = "subscriber_id"
	metadataSubscriptionIDKey = "subscription_id"

	providerName = "stripe"

	// Префикс транзакции для нулевых платежей, которые не отправляются в Stripe
	zeroAmountTxPrefix = "tx_zero_"
)

// Config настройки шлюза Stripe
type Config struct {
	APIKey        string
	Currency      string
	PaymentMethod string
}

// paymentIntents часть API Stripe, которую использует шлюз
type paymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Gateway списывает платеж одной подтвержденной PaymentIntent
type Gateway struct {
	intents paymentIntents
	cfg     Config
	log     *logger.Logger
}

// NewGateway создает шлюз поверх клиента Stripe SDK
func NewGateway(cfg Config, log *logger.Logger) *Gateway {
	sc := &client.API{}
	sc.Init(cfg.APIKey, nil)
	return newGateway(sc.PaymentIntents, cfg, log)
}

func newGateway(intents paymentIntents, cfg Config, log *logger.Logger) *Gateway {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	return &Gateway{intents: intents, cfg: cfg, log: log}
}

// Settle создает и сразу подтверждает PaymentIntent. ID платежа служит ключом идемпотентности.
func (g *Gateway) Settle(ctx context.Context, payment *domain.Payment) (string, error) {
	if payment.Amount.IsZero() {
		g.log.Infow("Zero amount payment approved without Stripe charge", "paymentID", payment.ID)
		return zeroAmountTxPrefix + payment.ID, nil
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toMinorUnits(payment.Amount)),
		Currency:    stripe.String(g.cfg.Currency),
		Confirm:     stripe.Bool(true),
		Description: stripe.String(payment.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if g.cfg.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(g.cfg.PaymentMethod)
	}
	params.Context = ctx
	params.SetIdempotencyKey(payment.ID)
	params.AddMetadata(metadataPaymentIDKey, payment.ID)
	params.AddMetadata(metadataSubscriberIDKey, payment.SubscriberID)
	if payment.SubscriptionID != nil {
		params.AddMetadata(metadataSubscriptionIDKey, *payment.SubscriptionID)
	}

	pi, err := g.intents.New(params)
	if err != nil {
		logStripeError(g.log, "Settle", err)
		return "", domain.NewGatewayError(providerName, stripeMessage(err), err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		g.log.Warnw("Stripe payment intent not settled", "paymentID", payment.ID, "intentID", pi.ID, "status", pi.Status)
		return "", domain.NewGatewayError(providerName, fmt.Sprintf("payment intent %s is %s", pi.ID, pi.Status), nil)
	}

	g.log.Infow("Stripe payment intent succeeded", "paymentID", payment.ID, "intentID", pi.ID)
	return pi.ID, nil
}

// toMinorUnits переводит сумму в центы
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func stripeMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
		return
	}
	log.Errorw("Non-Stripe error during Stripe operation", "operation", operation, "error", err)
}
