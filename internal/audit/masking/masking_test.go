package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "b****@acme.test", MaskEmail("billing@acme.test"))
	assert.Equal(t, "****", MaskEmail("not-an-email"))
	assert.Equal(t, "", MaskEmail("  "))
}

func TestMaskSensitive(t *testing.T) {
	masked := MaskSensitive(map[string]any{
		"customer_email": "ops@acme.test",
		"invoice_number": "INV-000001",
		"nested":         map[string]any{"api_token": "secret"},
		"":               "dropped",
	})

	assert.Equal(t, "o****@acme.test", masked["customer_email"])
	assert.Equal(t, "INV-000001", masked["invoice_number"])
	assert.Equal(t, map[string]any{"api_token": "****"}, masked["nested"])
	assert.NotContains(t, masked, "")
}

func TestMaskSensitivePersonnelNames(t *testing.T) {
	masked := MaskSensitive(map[string]any{
		"first_name": "Dana",
		"last_name":  " Éloise ",
		"emails":     []any{"a@x.test", "bob@y.test"},
		"hours":      12.5,
	})

	assert.Equal(t, "D.", masked["first_name"])
	assert.Equal(t, "É.", masked["last_name"])
	assert.Equal(t, []any{"a****@x.test", "b****@y.test"}, masked["emails"])
	assert.Equal(t, 12.5, masked["hours"])
}

func TestMaskSensitiveNilInput(t *testing.T) {
	masked := MaskSensitive(nil)
	assert.NotNil(t, masked)
	assert.Empty(t, masked)
}
