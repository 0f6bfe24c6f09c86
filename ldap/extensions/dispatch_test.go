package extensions

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dLDAP/ldap/ber"
)

// TestDecodeFieldsTolerance checks both sides of the per-value-type
// tolerance knob: a complete value type rejects unknown tags, a value
// type with an active extension point skips them while still dispatching
// the known fields
func TestDecodeFieldsTolerance(t *testing.T) {
	elements := []ber.Element{
		ber.NewTaggedOctetString(0x80, "known"),
		ber.NewTaggedOctetString(0x9F, "from a future revision"),
	}

	t.Run("strict", func(t *testing.T) {
		err := decodeFields("test value", elements, fieldHandlers{
			0x80: func(el ber.Element) {},
		}, false)
		if !errors.Is(err, ErrUnexpectedType) {
			t.Errorf("expected ErrUnexpectedType, got %v", err)
		}
	})

	t.Run("tolerant", func(t *testing.T) {
		var got string
		err := decodeFields("test value", elements, fieldHandlers{
			0x80: func(el ber.Element) { got = el.StringValue() },
		}, true)
		if err != nil {
			t.Fatalf("decodeFields() failed: %v", err)
		}
		if got != "known" {
			t.Errorf("known field = %q, want %q", got, "known")
		}
	})
}
