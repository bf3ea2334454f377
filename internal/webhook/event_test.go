package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckoutCompletedPaid(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","created":1700000000,
		"data":{"object":{"id":"cs_1","payment_intent":"pi_1","payment_status":"paid","amount_total":10000,
		"payment_method_types":["card"],"metadata":{"payment_id":"pay-1","order_id":"ord-1"}}}}`)

	ev, err := Parse(body)
	require.NoError(t, err)

	succeeded, ok := ev.(PaymentSucceeded)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "evt_1", succeeded.Meta().ID)
	assert.Equal(t, Correlation{PaymentID: "pay-1", OrderID: "ord-1", SessionID: "cs_1", IntentID: "pi_1"}, succeeded.Ref)
	assert.Equal(t, "card", succeeded.Method)
	assert.Equal(t, int64(10000), succeeded.AmountTotal)
}

func TestParseCheckoutCompletedUnpaidWaitsForAsync(t *testing.T) {
	body := []byte(`{"id":"evt_2","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_2","payment_status":"unpaid","payment_method_types":["au_becs_debit"]}}}`)

	ev, err := Parse(body)
	require.NoError(t, err)
	ignored, ok := ev.(Ignored)
	require.True(t, ok)
	assert.Equal(t, "awaiting async settlement", ignored.Reason)
}

func TestParseAsyncSucceededWithMultipleMethodsLeavesMethodEmpty(t *testing.T) {
	body := []byte(`{"id":"evt_3","type":"checkout.session.async_payment_succeeded",
		"data":{"object":{"id":"cs_3","client_reference_id":"ord-3","payment_method_types":["card","au_becs_debit"]}}}`)

	ev, err := Parse(body)
	require.NoError(t, err)
	succeeded := ev.(PaymentSucceeded)
	assert.Empty(t, succeeded.Method)
	assert.Equal(t, "ord-3", succeeded.Ref.OrderID)
}

func TestParseFailureVariants(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
		ref    Correlation
	}{
		{
			name:   "expired",
			body:   `{"id":"e","type":"checkout.session.expired","data":{"object":{"id":"cs_9","metadata":{"order_id":"ord-9"}}}}`,
			reason: "checkout session expired",
			ref:    Correlation{OrderID: "ord-9", SessionID: "cs_9"},
		},
		{
			name:   "async failed",
			body:   `{"id":"e","type":"checkout.session.async_payment_failed","data":{"object":{"id":"cs_8"}}}`,
			reason: "async payment failed",
			ref:    Correlation{SessionID: "cs_8"},
		},
		{
			name:   "intent failed",
			body:   `{"id":"e","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_7","metadata":{"payment_id":"pay-7"},"last_payment_error":{"message":"card declined"}}}}`,
			reason: "card declined",
			ref:    Correlation{PaymentID: "pay-7", IntentID: "pi_7"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse([]byte(tt.body))
			require.NoError(t, err)
			failed, ok := ev.(PaymentFailed)
			require.True(t, ok, "got %T", ev)
			assert.Equal(t, tt.reason, failed.Reason)
			assert.Equal(t, tt.ref, failed.Ref)
		})
	}
}

func TestParseChargeRefunded(t *testing.T) {
	body := []byte(`{"id":"evt_r","type":"charge.refunded","data":{"object":{"id":"ch_1","payment_intent":"pi_1",
		"refunds":{"data":[{"id":"re_1","amount":500,"status":"succeeded"},{"id":"re_2","amount":100,"status":"pending"}]}}}}`)

	ev, err := Parse(body)
	require.NoError(t, err)
	refunded := ev.(PaymentRefunded)
	assert.Equal(t, "pi_1", refunded.Ref.IntentID)
	assert.Equal(t, []Refund{{ID: "re_1", Amount: 500}}, refunded.Refunds)
}

func TestParseUnknownTypeIsIgnored(t *testing.T) {
	ev, err := Parse([]byte(`{"id":"evt_x","type":"customer.created","data":{"object":{}}}`))
	require.NoError(t, err)
	_, ok := ev.(Ignored)
	assert.True(t, ok)
}

func TestParseRejectsMalformedShapes(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"type":"checkout.session.completed"}`,
		`{"id":"e","type":"checkout.session.completed"}`,
		`{"id":"e","type":"checkout.session.completed","data":{"object":{"payment_status":"paid"}}}`,
		`{"id":"e","type":"payment_intent.payment_failed","data":{"object":"oops"}}`,
	}
	for _, b := range bodies {
		_, err := Parse([]byte(b))
		assert.ErrorIs(t, err, ErrMalformedEvent, b)
	}
}
