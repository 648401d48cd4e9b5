package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"prescription-order-service/internal/problem"
)

// ValidationPriority runs right after Logging, short-circuiting the rest
// of the chain on failure (spec section 4.3's ordering: logging ->
// validation -> caching -> handler).
const ValidationPriority = 10

// Validation runs struct-tag validation via validator/v10, translating
// validator.ValidationErrors into the spec's field->messages map.
// Grounded on the teacher's interfaces/http/validation.Validator, trimmed
// to the single concern this pipeline stage owns — struct tag checking —
// since sanitization and business-rule self-validation belong to the
// handler, not this cross-cutting behavior.
type Validation struct {
	validate *validator.Validate
	mu       sync.RWMutex
}

func NewValidation() *Validation {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validation{validate: v}
}

func (v *Validation) Name() string  { return "validation" }
func (v *Validation) Priority() int { return ValidationPriority }

func (v *Validation) Handle(ctx context.Context, req any, next Next) (any, error) {
	v.mu.RLock()
	err := v.validate.Struct(req)
	v.mu.RUnlock()

	if err == nil {
		return next(ctx, req)
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, problem.New(problem.Validation, "VALIDATION_FAILED", err.Error())
	}

	fields := make(map[string][]string)
	for _, fe := range validationErrs {
		field := fe.Field()
		fields[field] = append(fields[field], messageFor(fe))
	}

	return nil, problem.NewValidation("VALIDATION_FAILED", "one or more fields failed validation", fields).
		WithOperation(requestName(req))
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
