package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/bulk-invoices/:id"),
		attribute.String("customer_name", "Acme"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsRootCause(t *testing.T) {
	root := errors.New("connection refused")
	err := SafeError(fmt.Errorf("list assignments for org 42: %w", root))
	assert.EqualError(t, err, "connection refused")
	assert.Nil(t, SafeError(nil))
}
