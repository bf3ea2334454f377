package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	"":                {"version", "order"},
	"order":           {"id", "status", "payments", "pricing"},
	"order.pricing":   {"subtotal", "total"},
	"order.payments[]": {"id", "amount"},
}

func TestMarshalOrdersKeysBySchema(t *testing.T) {
	record := map[string]any{
		"order": map[string]any{
			"pricing": map[string]any{"total": json.Number("822.80"), "subtotal": json.Number("968.00"), "gst": json.Number("74.80")},
			"status":  "CREATED",
			"id":      "o-1",
			"payments": []any{
				map[string]any{"status": "PAID", "amount": json.Number("100.00"), "id": "p-1"},
			},
			"zeta":  true,
			"alpha": nil,
		},
		"version": "1.1",
	}

	out, err := Marshal(record, testSchema)
	require.NoError(t, err)

	want := `{"version":"1.1","order":{"id":"o-1","status":"CREATED","payments":[{"id":"p-1","amount":100.00,"status":"PAID"}],` +
		`"pricing":{"subtotal":968.00,"total":822.80,"gst":74.80},"alpha":null,"zeta":true}}`
	assert.Equal(t, want, string(out))
}

func TestMarshalIsStableAcrossInsertionOrder(t *testing.T) {
	type pricing struct {
		Total    json.Number `json:"total"`
		Subtotal json.Number `json:"subtotal"`
	}
	type order struct {
		Status  string  `json:"status"`
		Pricing pricing `json:"pricing"`
		ID      string  `json:"id"`
	}

	fromStruct, err := Marshal(map[string]any{
		"version": "1.1",
		"order":   order{Status: "PAID", ID: "o-2", Pricing: pricing{Total: "10.00", Subtotal: "10.00"}},
	}, testSchema)
	require.NoError(t, err)

	fromMap, err := Marshal(map[string]any{
		"order": map[string]any{
			"id":      "o-2",
			"pricing": map[string]any{"subtotal": json.Number("10.00"), "total": json.Number("10.00")},
			"status":  "PAID",
		},
		"version": "1.1",
	}, testSchema)
	require.NoError(t, err)

	assert.Equal(t, string(fromMap), string(fromStruct))

	again, err := Marshal(map[string]any{
		"version": "1.1",
		"order":   order{Status: "PAID", ID: "o-2", Pricing: pricing{Total: "10.00", Subtotal: "10.00"}},
	}, testSchema)
	require.NoError(t, err)
	assert.Equal(t, fromStruct, again)
}

func TestUnknownPathsSortAlphabetically(t *testing.T) {
	out, err := Marshal(map[string]any{"b": 1, "a": map[string]any{"y": 1, "x": 2}}, Schema{})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":2,"y":1},"b":1}`, string(out))
}

func TestNestedArraysUseBracketPath(t *testing.T) {
	schema := Schema{"rows[][]": {"z", "a"}}
	out, err := Marshal(map[string]any{
		"rows": []any{[]any{map[string]any{"a": 1, "z": 2}}},
	}, schema)
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[[{"z":2,"a":1}]]}`, string(out))
}

func TestCanonicalizeExposesOrderedKeys(t *testing.T) {
	obj, ok := Canonicalize(map[string]any{"order": 1, "version": "1.1", "extra": 2}, testSchema).(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"version", "order", "extra"}, obj.Keys())

	v, ok := obj.Get("version")
	require.True(t, ok)
	assert.Equal(t, "1.1", v)
}

func TestSchemaListingMissingKeysIsIgnored(t *testing.T) {
	out, err := Marshal(map[string]any{"order": map[string]any{"status": "X"}}, testSchema)
	require.NoError(t, err)
	assert.Equal(t, `{"order":{"status":"X"}}`, string(out))
}
