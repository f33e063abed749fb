// Package settlement reacts to payment outcomes: captured payments finalize
// the stock reserved at checkout and empty the customer's cart, failed
// payments put the stock back.
package settlement

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/swiftcart/backend/internal/cart"
	kafkax "github.com/swiftcart/backend/internal/kafka"
	"github.com/swiftcart/backend/internal/orders"
	"github.com/swiftcart/backend/internal/redisx"
)

type Service struct {
	Orders orders.Repo
	Cart   cart.Store
	Redis  *redis.Client
	Log    zerolog.Logger
	Name   string // dedup namespace, usually the consumer group
}

// HandleCaptured consumes a PaymentCaptured event. Events are delivered
// at-least-once; the redis claim makes reprocessing a no-op.
func (s *Service) HandleCaptured(ctx context.Context, m kafkago.Message) error {
	env, payload, err := decode[orders.PaymentCapturedPayload](m)
	if err != nil {
		s.Log.Error().Err(err).Msg("drop malformed payment.captured event")
		return nil // poison message, do not retry
	}
	first, err := s.claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.Orders.ConsumeReservations(ctx, payload.OrderID); err != nil {
		return fmt.Errorf("consume reservations for order %s: %w", payload.OrderID, err)
	}
	if err := s.Cart.Clear(ctx, payload.CustomerID); err != nil {
		return fmt.Errorf("clear cart for customer %s: %w", payload.CustomerID, err)
	}
	s.Log.Info().Str("order", payload.OrderID).Str("customer", payload.CustomerID).Msg("payment captured settled")
	return nil
}

// HandleFailed consumes a PaymentFailed event and releases the order's
// reservations back to stock.
func (s *Service) HandleFailed(ctx context.Context, m kafkago.Message) error {
	env, payload, err := decode[orders.PaymentFailedPayload](m)
	if err != nil {
		s.Log.Error().Err(err).Msg("drop malformed payment.failed event")
		return nil
	}
	first, err := s.claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.Orders.ReleaseReservations(ctx, payload.OrderID); err != nil {
		return fmt.Errorf("release reservations for order %s: %w", payload.OrderID, err)
	}
	s.Log.Info().Str("order", payload.OrderID).Str("reason", payload.Reason).Msg("reservations released")
	return nil
}

func (s *Service) claim(ctx context.Context, eventID string) (bool, error) {
	if s.Redis == nil || eventID == "" {
		return true, nil
	}
	return redisx.ClaimOnce(ctx, s.Redis, fmt.Sprintf(redisx.KeyDedup, s.Name, eventID), redisx.TTLDedup)
}

func decode[T any](m kafkago.Message) (orders.Envelope, T, error) {
	var env orders.Envelope
	var payload T
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return env, payload, err
	}
	payload, err := kafkax.UnwrapPayload[T](env.Payload)
	return env, payload, err
}
