package paging

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Result is the storage-layer answer to a paginated Request: up to
// Limit() rows (probe row included) plus, only when requested, a total
// count computed against the same filter (spec section 4.6's
// "counting may be expensive" — callers opt in via $count).
type Result[T any] struct {
	Rows       []T
	TotalCount *int64
}

// Envelope is the OData-flavored response shape named in spec section 6:
// {"@odata.context", "@odata.count"?, "@odata.nextLink"?, "value"}.
type Envelope[T any] struct {
	Context  string `json:"@odata.context"`
	Count    *int64 `json:"@odata.count,omitempty"`
	NextLink string `json:"@odata.nextLink,omitempty"`
	Value    []T    `json:"value"`
}

// Build trims the probe row (if present) from rows, and constructs the
// envelope: next_link is present iff the probe row confirmed more items
// exist beyond skip+top (spec's invariant 7, "next_link != null iff
// more items exist beyond skip+top"). requestURL is the inbound request
// URL; the next link keeps its path and other parameters, advances $skip
// by Top, sets $top (and $count/$orderby when requested) from req, and
// re-encodes the query with its keys in sorted order.
func Build[T any](requestURL *url.URL, contextSet string, req Request, result Result[T]) Envelope[T] {
	rows := result.Rows
	hasMore := len(rows) > req.Top
	if hasMore {
		rows = rows[:req.Top]
	}

	env := Envelope[T]{
		Context: fmt.Sprintf("%s#%s", baseURL(requestURL), contextSet),
		Value:   rows,
	}

	if req.IncludeCount {
		env.Count = result.TotalCount
	}

	if hasMore {
		env.NextLink = nextLink(requestURL, req)
	}

	return env
}

func baseURL(u *url.URL) string {
	base := *u
	base.RawQuery = ""
	return base.String()
}

func nextLink(requestURL *url.URL, req Request) string {
	next := *requestURL
	q := next.Query()
	q.Set("$skip", strconv.Itoa(req.Skip+req.Top))
	q.Set("$top", strconv.Itoa(req.Top))
	if req.IncludeCount {
		q.Set("$count", "true")
	}
	if req.OrderBy != "" {
		if req.OrderDesc {
			q.Set("$orderby", req.OrderBy+" desc")
		} else {
			q.Set("$orderby", req.OrderBy)
		}
	}
	// Encode escapes '$' as %24; the OData parameter names keep it literal.
	next.RawQuery = strings.ReplaceAll(q.Encode(), "%24", "$")
	return next.String()
}
