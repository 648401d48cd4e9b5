package ordersdemo

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"prescription-order-service/internal/paging"
	"prescription-order-service/internal/pipeline"
	"prescription-order-service/internal/problem"
)

// Handlers exposes the two demo routes as http.HandlerFuncs, each built by
// running its request through the shared pipeline before the terminal
// Service call (spec section 4.3: logging -> validation -> caching ->
// handler, composed once at startup by pipeline.Pipeline.Build).
type Handlers struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandlers(svc *Service, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

func (h *Handlers) ListOrders(p *pipeline.Pipeline) http.HandlerFunc {
	run := p.Build(pipeline.HandlerFunc(func(ctx context.Context, q ListOrdersQuery) (paging.Result[Order], error) {
		return h.svc.ListOrders(ctx, q)
	}))

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := paging.Parse(r.URL.Query(), pagingConfig())
		if err != nil {
			problem.Write(w, r, err, h.logger)
			return
		}

		raw, err := run(r.Context(), ListOrdersQuery{RawQuery: r.URL.RawQuery, Paging: req})
		if err != nil {
			problem.Write(w, r, err, h.logger)
			return
		}

		// The caching behavior returns the freshly-computed typed result on
		// a miss, but hands back raw encoded bytes on a cache hit (it has
		// no way to decode into T on the generic path) — decode here.
		var result paging.Result[Order]
		switch v := raw.(type) {
		case paging.Result[Order]:
			result = v
		case []byte:
			if err := json.Unmarshal(v, &result); err != nil {
				problem.Write(w, r, problem.NewPermanentBackend("DECODE_FAILED", "failed to decode cached order page", err), h.logger)
				return
			}
		default:
			problem.Write(w, r, problem.NewPermanentBackend("BAD_RESULT_TYPE", "list handler returned unexpected type", nil), h.logger)
			return
		}
		built := paging.Build(r.URL, "orders", req, result)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(built)
	}
}

func (h *Handlers) CreateOrder(p *pipeline.Pipeline) http.HandlerFunc {
	run := p.Build(pipeline.HandlerFunc(func(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
		return h.svc.CreateOrder(ctx, cmd)
	}))

	return func(w http.ResponseWriter, r *http.Request) {
		var cmd CreateOrderCommand
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			problem.Write(w, r, problem.New(problem.Validation, "MALFORMED_BODY", "request body is not valid JSON"), h.logger)
			return
		}

		result, err := run(r.Context(), cmd)
		if err != nil {
			problem.Write(w, r, err, h.logger)
			return
		}

		order, ok := result.(Order)
		if !ok {
			problem.Write(w, r, problem.NewPermanentBackend("BAD_RESULT_TYPE", "create handler returned unexpected type", nil), h.logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(order)
	}
}
