package pipeline

import "context"

// HandlerFunc adapts a concrete, typed command/query handler into the
// pipeline's Next continuation so it can sit at the innermost position
// passed to Pipeline.Build. Kept deliberately thin: the terminal handler
// owns no cross-cutting concern, those all live in the Behaviors above it.
func HandlerFunc[Req any, Resp any](fn func(ctx context.Context, req Req) (Resp, error)) Next {
	return func(ctx context.Context, req any) (any, error) {
		typed, ok := req.(Req)
		if !ok {
			var zero Resp
			return zero, errUnexpectedRequestType
		}
		return fn(ctx, typed)
	}
}

var errUnexpectedRequestType = &unexpectedRequestTypeError{}

type unexpectedRequestTypeError struct{}

func (e *unexpectedRequestTypeError) Error() string {
	return "pipeline: request did not match the terminal handler's expected type"
}
