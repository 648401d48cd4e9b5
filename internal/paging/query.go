// Package paging implements the OData-style paginated query protocol
// (spec section 4.6): $top/$skip/$count/$orderby parsing, field
// whitelisting, and next-link hypermedia via probe-for-one-extra-item.
// The teacher's repository.Pagination/PaginatedResult are DynamoDB
// cursor-specific (LastEvaluatedKey, base64 cursor tokens) and don't
// survive the move to OData-style offset paging; only the idiom —
// a generic result type and named default/max constants — carries over.
// The probe-for-one-extra-item technique is grounded on
// alextanhongpin-core/http/pagination's Cursor.Limit(), which fetches
// First+1 rows to detect HasNext without a second count query.
package paging

import (
	"net/url"
	"strconv"
	"strings"

	"prescription-order-service/internal/problem"
)

// Request is the parsed form of $top/$skip/$count/$orderby.
type Request struct {
	Top          int
	Skip         int
	IncludeCount bool
	OrderBy      string
	OrderDesc    bool
}

// Config carries the collection-specific knobs spec section 6 names:
// the $top default/ceiling, the $count default, and the set of field
// names this collection allows sorting on.
type Config struct {
	DefaultPageSize     int
	MaxPageSize         int
	DefaultIncludeCount bool
	SortableFields      map[string]bool
}

// Parse reads $top/$skip/$count/$orderby from query, applying Config's
// defaults/clamps and rejecting a disallowed $orderby field as
// Validation (spec section 4.6's mandatory whitelisting).
func Parse(query url.Values, cfg Config) (Request, error) {
	req := Request{
		Top:          cfg.DefaultPageSize,
		IncludeCount: cfg.DefaultIncludeCount,
	}

	if raw := query.Get("$top"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			req.Top = n
		}
	}
	if req.Top < 1 {
		req.Top = 1
	}
	if req.Top > cfg.MaxPageSize {
		req.Top = cfg.MaxPageSize
	}

	if raw := query.Get("$skip"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			req.Skip = n
		}
	}
	if req.Skip < 0 {
		req.Skip = 0
	}

	if raw := query.Get("$count"); raw != "" {
		req.IncludeCount = raw == "true"
	}

	if raw := strings.TrimSpace(query.Get("$orderby")); raw != "" {
		// Multiple comma-separated fields are accepted but only the
		// first is applied (spec section 4.6), unless an adapter
		// advertises multi-field support — none currently does.
		first := strings.TrimSpace(strings.Split(raw, ",")[0])
		parts := strings.Fields(first)
		if len(parts) == 0 {
			return Request{}, problem.NewValidation("INVALID_ORDERBY", "$orderby must name a field", map[string][]string{
				"$orderby": {"must not be blank"},
			})
		}
		field := parts[0]
		desc := len(parts) > 1 && strings.EqualFold(parts[1], "desc")

		if !cfg.SortableFields[field] {
			return Request{}, problem.NewValidation("INVALID_ORDERBY_FIELD", "field is not sortable", map[string][]string{
				"$orderby": {"must be one of the collection's sortable fields"},
			})
		}
		req.OrderBy = field
		req.OrderDesc = desc
	}

	return req, nil
}

// Limit is the row count to request from the storage adapter: Top+1,
// so the extra row (dropped before returning) reveals whether more
// items exist without a second query.
func (r Request) Limit() int { return r.Top + 1 }
