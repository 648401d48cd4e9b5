package ordersdemo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"prescription-order-service/internal/cache"
	"prescription-order-service/internal/paging"
	"prescription-order-service/internal/problem"
)

// Order is the opaque payload this worked example moves through the
// core; its fields exist only to give ListOrders something to sort and
// CreateOrder something to validate, not to model a real prescription.
type Order struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId" validate:"required"`
	Drug      string    `json:"drug" validate:"required"`
	Refills   int       `json:"refills" validate:"gte=0,lte=12"`
	Status    string    `json:"status" validate:"required,oneof=pending filled cancelled"`
	OrderDate time.Time `json:"orderDate"`
}

const orderKeyPrefix = "order:"

// pagingConfig is the one OData configuration this demo exposes: $orderby
// is restricted to the two fields a paged order list is plausibly sorted
// by (spec section 6's mandatory field whitelist).
func pagingConfig() paging.Config {
	return paging.Config{
		DefaultPageSize:     20,
		MaxPageSize:         100,
		DefaultIncludeCount: false,
		SortableFields:      map[string]bool{"orderDate": true, "status": true},
	}
}

// ListOrdersQuery is the CacheableQuery descriptor for GET /orders: one
// cache entry per distinct query string, read under Eventual consistency
// since a stale paged list is an acceptable tradeoff for read throughput
// (spec section 4.3).
type ListOrdersQuery struct {
	RawQuery string
	Paging   paging.Request
}

func (q ListOrdersQuery) Name() string                       { return "list-orders" }
func (q ListOrdersQuery) CacheKey() string                    { return "orders:paged:" + q.RawQuery }
func (q ListOrdersQuery) CacheConsistency() cache.Consistency { return cache.Eventual }
func (q ListOrdersQuery) CacheTTLSeconds() int                { return 30 }

// CreateOrderCommand is the InvalidatingCommand descriptor for POST
// /orders: validator tags run through the pipeline's Validation behavior
// before the handler ever sees the command (spec section 4.3's ordering).
type CreateOrderCommand struct {
	PatientID string `json:"patientId" validate:"required"`
	Drug      string `json:"drug" validate:"required"`
	Refills   int    `json:"refills" validate:"gte=0,lte=12"`
}

func (c CreateOrderCommand) Name() string { return "create-order" }

func (c CreateOrderCommand) InvalidateKeys() []string {
	return []string{"orders:all", "orders:paged:*", "orders:patient:" + c.PatientID}
}

func (c CreateOrderCommand) CacheConsistency() cache.Consistency { return cache.Strong }

// Service implements the two order operations this example exercises,
// routing the order scan and the order write through its executor
// (ResilientExecutor runs them under the PrimaryStore kind, spec section
// 4.1). The $count total reads the store's keys directly, outside the
// executor.
type Service struct {
	store *MemoryStore
	exec  executor
}

// executor is the narrow interface the Service calls through. It is
// implemented by ResilientExecutor, which runs op through the generic
// resilience.Execute free function, and by PooledExecutor, which submits
// op to the worker pool.
type executor interface {
	Run(ctx context.Context, op func(context.Context) ([]byte, error)) ([]byte, error)
}

func NewService(store *MemoryStore, exec executor) *Service {
	return &Service{store: store, exec: exec}
}

func (s *Service) ListOrders(ctx context.Context, q ListOrdersQuery) (paging.Result[Order], error) {
	raw, err := s.exec.Run(ctx, func(ctx context.Context) ([]byte, error) {
		return s.scanOrders(ctx, q.Paging)
	})
	if err != nil {
		return paging.Result[Order]{}, err
	}

	var rows []Order
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return paging.Result[Order]{}, problem.NewPermanentBackend("DECODE_FAILED", "failed to decode cached order page", err)
		}
	}

	var total *int64
	if q.Paging.IncludeCount {
		n := int64(len(s.store.Keys(orderKeyPrefix)))
		total = &n
	}

	return paging.Result[Order]{Rows: rows, TotalCount: total}, nil
}

func (s *Service) scanOrders(ctx context.Context, req paging.Request) ([]byte, error) {
	keys := s.store.Keys(orderKeyPrefix)
	orders := make([]Order, 0, len(keys))
	for _, k := range keys {
		raw, err := s.store.Get(ctx, k)
		if err != nil {
			continue
		}
		var o Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, problem.NewPermanentBackend("DECODE_FAILED", "failed to decode stored order", err)
		}
		orders = append(orders, o)
	}

	sort.Slice(orders, func(i, j int) bool {
		less := orders[i].OrderDate.Before(orders[j].OrderDate)
		if req.OrderBy == "status" {
			less = orders[i].Status < orders[j].Status
		}
		if req.OrderDesc {
			return !less
		}
		return less
	})

	limit := req.Limit()
	start := req.Skip
	if start > len(orders) {
		start = len(orders)
	}
	end := start + limit
	if end > len(orders) {
		end = len(orders)
	}

	return json.Marshal(orders[start:end])
}

func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if cmd.Drug == "epoetin" && cmd.Refills == 0 {
		return Order{}, problem.NewValidation("NO_REFILLS_REMAINING", "prescription has no refills remaining",
			map[string][]string{"refills": {"must be greater than 0 for this drug"}})
	}

	order := Order{
		ID:        fmt.Sprintf("ord_%d", time.Now().UnixNano()),
		PatientID: cmd.PatientID,
		Drug:      cmd.Drug,
		Refills:   cmd.Refills,
		Status:    "pending",
		OrderDate: time.Now(),
	}

	_, err := s.exec.Run(ctx, func(ctx context.Context) ([]byte, error) {
		encoded, err := json.Marshal(order)
		if err != nil {
			return nil, err
		}
		return nil, s.store.Put(ctx, orderKeyPrefix+order.ID, encoded)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}
