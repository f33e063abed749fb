package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/swiftcart/backend/internal/auth"
	kafkax "github.com/swiftcart/backend/internal/kafka"
	"github.com/swiftcart/backend/internal/cart"
	"github.com/swiftcart/backend/internal/catalog"
	"github.com/swiftcart/backend/internal/metrics"
	"github.com/swiftcart/backend/internal/orders"
	"github.com/swiftcart/backend/internal/payment"
)

// EventPublisher is what the handlers need from the kafka producer.
type EventPublisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Server wires the storefront's transaction core behind its HTTP surface.
// Redis and Producer may be nil; caching and event publishing are then
// skipped.
type Server struct {
	Log      zerolog.Logger
	Auth     auth.Verifier
	Catalog  catalog.Repo
	Cart     cart.Store
	Orders   orders.Repo
	Factory  *orders.Factory
	Gateway  payment.Gateway
	Verifier *payment.Verifier
	Producer EventPublisher
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Service  string
	Currency string
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(s.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Get("/api/products", s.listProducts)
	r.Get("/api/products/search", s.searchProducts)
	r.Get("/api/products/{id}", s.getProduct)

	// gateway callback carries its own proof (HMAC), no session required
	r.Post("/api/payment/verify", s.verifyPayment)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(s.Auth))

		r.Get("/api/cart", s.getCart)
		r.Post("/api/cart/add", s.addToCart)
		r.Patch("/api/cart/update-quantity", s.updateCartQuantity)

		r.Post("/api/orders/create", s.createOrder)
		r.Get("/api/orders/my-orders", s.myOrders)
		r.Get("/api/orders/{id}", s.getOrder)

		r.Post("/api/payment/create-order", s.createPaymentIntent)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/api/orders/all", s.allOrders)
			r.Put("/api/orders/update-status/{orderID}", s.updateOrderStatus)
		})
	})
	return r
}

func (s *Server) publish(topic, eventType, orderID string, payload any, traceID string) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		TraceID:       traceID,
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(payload)
	s.Producer.Publish(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
