package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetRequest struct{ Name string }

func TestHandlerFunc_InvokesTypedHandlerOnMatch(t *testing.T) {
	next := HandlerFunc(func(ctx context.Context, req greetRequest) (string, error) {
		return "hello " + req.Name, nil
	})

	result, err := next(context.Background(), greetRequest{Name: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", result)
}

func TestHandlerFunc_ErrorsOnRequestTypeMismatch(t *testing.T) {
	next := HandlerFunc(func(ctx context.Context, req greetRequest) (string, error) {
		return "unreached", nil
	})

	_, err := next(context.Background(), 42)
	assert.Error(t, err)
}
