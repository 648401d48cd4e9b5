package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prescription-order-service/internal/problem"
)

type createThingCommand struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=1,lte=10"`
}

func (createThingCommand) Name() string { return "create-thing" }

func TestValidation_PassesThroughValidRequest(t *testing.T) {
	v := NewValidation()
	called := false
	next := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}

	result, err := v.Handle(context.Background(), createThingCommand{Name: "widget", Count: 2}, next)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", result)
}

func TestValidation_FailsWithFieldErrorsOnInvalidRequest(t *testing.T) {
	v := NewValidation()
	next := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not run when validation fails")
		return nil, nil
	}

	_, err := v.Handle(context.Background(), createThingCommand{Name: "", Count: 99}, next)
	require.Error(t, err)

	f := problem.As(err)
	assert.Equal(t, problem.Validation, f.Kind)
	assert.Contains(t, f.FieldErrors, "name")
	assert.Contains(t, f.FieldErrors, "count")
}
