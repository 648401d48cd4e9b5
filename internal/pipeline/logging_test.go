package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"prescription-order-service/internal/problem"
)

type namedRequest struct{ id string }

func (r namedRequest) Name() string { return r.id }

func TestLogging_LogsInfoOnSuccess(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewLogging(zap.New(core))

	_, err := l.Handle(context.Background(), namedRequest{id: "list-orders"}, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request handled", logs.All()[0].Message)
	assert.Equal(t, zap.InfoLevel, logs.All()[0].Level)
}

func TestLogging_LogsWarnOnFailureWithFailureKind(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogging(zap.New(core))

	_, err := l.Handle(context.Background(), namedRequest{id: "create-order"}, func(ctx context.Context, req any) (any, error) {
		return nil, problem.New(problem.Validation, "BAD_INPUT", "invalid")
	})
	require.Error(t, err)

	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestRequestName_FallsBackToUnknownWithoutDescriptor(t *testing.T) {
	assert.Equal(t, "unknown", requestName(42))
	assert.Equal(t, "create-order", requestName(namedRequest{id: "create-order"}))
}
