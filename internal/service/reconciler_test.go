package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"meal-order-backend/internal/model"
	"meal-order-backend/internal/testutil"
	"meal-order-backend/internal/webhook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessEventSettlesOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, order.ID, "sam@example.com", "0400000000")
	p := env.openCharge(t, order.ID)

	env.pay(t, "evt_1", p)

	paid := env.payment(t, p.ID)
	assert.Equal(t, model.PaymentPaid, paid.Status)
	assert.Equal(t, "card", paid.Method)
	assert.NotNil(t, paid.PaidAt)

	o := env.order(t, order.ID)
	assert.Equal(t, int64(90000), o.AmountPaid)
	assert.True(t, o.FullyPaid)
	assert.Equal(t, model.OrderInProgress, o.Status)
	require.NotNil(t, o.CustomerID)

	customer, err := env.customerRepo.FindByID(context.Background(), nil, *o.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", customer.Email)

	require.Equal(t, 1, env.email.Count())
	assert.Equal(t, "sam@example.com", env.email.Sent[0].To)

	confirmation, err := env.confirmations.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1", confirmation.Version)
	assert.Equal(t, 1, confirmation.EmailAttempts)
	assert.NotNil(t, confirmation.EmailSentAt)
	assert.Equal(t, model.ExportPending, confirmation.ExportStatus)
}

func TestDuplicateSuccessIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, order.ID, "sam@example.com", "0400000000")
	p := env.openCharge(t, order.ID)

	env.pay(t, "evt_1", p)
	first, err := env.confirmations.Get(context.Background(), order.ID)
	require.NoError(t, err)

	// same event redelivered, then a stale success under a new event id
	env.pay(t, "evt_1", p)
	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_2", webhook.TypeCheckoutAsyncSucceeded, p, "paid", "card")))

	o := env.order(t, order.ID)
	assert.Equal(t, int64(90000), o.AmountPaid)
	assert.True(t, o.FullyPaid)
	assert.Equal(t, 1, env.email.Count())
	assert.Equal(t, int64(1), env.countRows(t, &model.OrderConfirmation{}, "order_id = ?", order.ID))
	assert.Equal(t, int64(1), env.countRows(t, &model.Customer{}, ""))

	again, err := env.confirmations.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Checksum, again.Checksum)
	assert.Equal(t, 1, again.EmailAttempts)
}

func TestConcurrentDuplicateSuccessSendsOneEmail(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, order.ID, "sam@example.com", "0400000000")
	p := env.openCharge(t, order.ID)

	events := []string{"evt_a", "evt_b", "evt_c", "evt_d", "evt_e"}
	var wg sync.WaitGroup
	errs := make(chan error, len(events))
	for _, id := range events {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			headers, body := testutil.SignedDelivery(testutil.CheckoutEvent(id, webhook.TypeCheckoutCompleted, p, "paid", "card"))
			errs <- env.reconciler.HandleWebhook(context.Background(), headers, body)
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, env.email.Count())
	assert.Equal(t, int64(90000), env.order(t, order.ID).AmountPaid)
	assert.Equal(t, int64(1), env.countRows(t, &model.OrderConfirmation{}, ""))
}

func TestUnpaidCheckoutCompletionWaitsForAsyncSettlement(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, order.ID, "sam@example.com", "")
	p := env.openCharge(t, order.ID)

	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_1", webhook.TypeCheckoutCompleted, p, "unpaid", "au_becs_debit")))
	assert.Equal(t, model.PaymentPending, env.payment(t, p.ID).Status)

	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_2", webhook.TypeCheckoutAsyncSucceeded, p, "paid", "au_becs_debit")))
	paid := env.payment(t, p.ID)
	assert.Equal(t, model.PaymentPaid, paid.Status)
	assert.Equal(t, "au_becs_debit", paid.Method)
}

func TestMethodResolvedFromGateway(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)
	env.gateway.Methods[p.PaymentIntentID] = "link"

	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_1", webhook.TypeCheckoutCompleted, p, "paid", "card", "link")))
	assert.Equal(t, "link", env.payment(t, p.ID).Method)
}

func TestMethodFallsBackToUnknown(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)
	env.gateway.MethodErr = errors.New("gateway down")

	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_1", webhook.TypeCheckoutCompleted, p, "paid", "card", "link")))
	paid := env.payment(t, p.ID)
	assert.Equal(t, model.PaymentPaid, paid.Status)
	assert.Equal(t, model.MethodUnknown, paid.Method)
}

func TestFailureUsesLatestPendingForOrderAsLastResort(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)

	err := env.deliver(t, testutil.IntentFailedEvent("evt_1", "pi_unknown", map[string]string{"order_id": order.ID}, "card declined"))
	require.NoError(t, err)

	failed := env.payment(t, p.ID)
	assert.Equal(t, model.PaymentFailed, failed.Status)
	assert.Equal(t, "card declined", failed.FailureReason)
	assert.Nil(t, failed.PaidAt)

	assert.Equal(t, 0, env.email.Count())
	assert.Equal(t, int64(0), env.countRows(t, &model.OrderConfirmation{}, ""))
	assert.Equal(t, model.OrderCreated, env.order(t, order.ID).Status)
}

func TestCheckoutExpiryFailsMatchedSession(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)

	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_1", webhook.TypeCheckoutExpired, p, "unpaid")))

	failed := env.payment(t, p.ID)
	assert.Equal(t, model.PaymentFailed, failed.Status)
	assert.Equal(t, "checkout session expired", failed.FailureReason)
}

func TestLateFailureForPaidChargeLeavesNewerChargeAlone(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "8W", model.PlanPartial)
	deposit := env.openCharge(t, order.ID)
	env.pay(t, "evt_1", deposit)
	balance := env.openCharge(t, order.ID)

	err := env.deliver(t, testutil.IntentFailedEvent("evt_2", deposit.PaymentIntentID,
		map[string]string{"payment_id": deposit.ID, "order_id": order.ID}, "card declined"))
	require.NoError(t, err)

	assert.Equal(t, model.PaymentPaid, env.payment(t, deposit.ID).Status)
	assert.Equal(t, model.PaymentPending, env.payment(t, balance.ID).Status)
}

func TestFailureAfterSuccessDoesNotReverse(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)
	env.pay(t, "evt_1", p)

	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_2", webhook.TypeCheckoutAsyncFailed, p, "unpaid")))

	assert.Equal(t, model.PaymentPaid, env.payment(t, p.ID).Status)
	assert.True(t, env.order(t, order.ID).FullyPaid)
}

func TestUnmatchedEventsAreAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	ghost := &model.Payment{ID: "pay-ghost", OrderID: "ord-ghost", CheckoutSessionID: "cs_ghost", Amount: 100}

	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_1", webhook.TypeCheckoutCompleted, ghost, "paid", "card")))
	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_2", webhook.TypeCheckoutExpired, ghost, "unpaid")))
	require.NoError(t, env.deliver(t, map[string]any{"id": "evt_3", "type": "customer.created", "data": map[string]any{"object": map[string]any{}}}))

	assert.Equal(t, 0, env.email.Count())
	assert.Equal(t, int64(0), env.countRows(t, &model.OrderConfirmation{}, ""))
}

func TestMalformedSignedEventIsAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":"oops"}}`)
	headers := http.Header{}
	headers.Set(webhook.SignatureHeader, webhook.Sign(body, testutil.WebhookSecret, time.Now()))

	assert.NoError(t, env.reconciler.HandleWebhook(context.Background(), headers, body))
}

func TestBadSignatureIsRejectedWithoutSideEffects(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)

	_, body := testutil.SignedDelivery(testutil.CheckoutEvent("evt_1", webhook.TypeCheckoutCompleted, p, "paid", "card"))
	headers := http.Header{}
	headers.Set(webhook.SignatureHeader, webhook.Sign(body, "whsec_wrong", time.Now()))

	err := env.reconciler.HandleWebhook(context.Background(), headers, body)
	require.Error(t, err)
	assert.True(t, IsSignatureError(err))

	err = env.reconciler.HandleWebhook(context.Background(), http.Header{}, body)
	assert.True(t, IsSignatureError(err))

	assert.Equal(t, model.PaymentPending, env.payment(t, p.ID).Status)
	assert.Equal(t, int64(0), env.countRows(t, &model.WebhookEvent{}, ""))
}

func TestRefundsReducePaidAmountOncePerRefund(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, order.ID, "sam@example.com", "0400000000")
	p := env.openCharge(t, order.ID)
	env.pay(t, "evt_1", p)
	p = env.payment(t, p.ID)

	re1 := map[string]any{"id": "re_1", "amount": 2000, "status": "succeeded"}
	re2 := map[string]any{"id": "re_2", "amount": 500, "status": "succeeded"}
	pending := map[string]any{"id": "re_3", "amount": 700, "status": "pending"}

	require.NoError(t, env.deliver(t, testutil.RefundEvent("evt_2", p, re1)))
	o := env.order(t, order.ID)
	assert.Equal(t, int64(88000), o.AmountPaid)
	assert.False(t, o.FullyPaid)

	require.NoError(t, env.deliver(t, testutil.RefundEvent("evt_3", p, re1, re2, pending)))
	assert.Equal(t, int64(87500), env.order(t, order.ID).AmountPaid)
	assert.Equal(t, int64(2), env.countRows(t, &model.Payment{}, "kind = ?", model.KindRefund))
	assert.Equal(t, model.PaymentPaid, env.payment(t, p.ID).Status)

	// refunds refresh the snapshot but never email
	assert.Equal(t, 1, env.email.Count())
	confirmation, err := env.confirmations.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Contains(t, string(confirmation.Payload), `"paid":875.00`)
}

func TestPartialPlanDepositThenBalance(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "8W", model.PlanPartial)
	env.addDelivery(t, order.ID, "sam@example.com", "0400000000")

	deposit := env.openCharge(t, order.ID)
	assert.Equal(t, model.PurposeDeposit, deposit.Purpose)
	assert.Equal(t, int64(10000), deposit.Amount)
	env.pay(t, "evt_1", deposit)

	o := env.order(t, order.ID)
	assert.Equal(t, int64(10000), o.AmountPaid)
	assert.False(t, o.FullyPaid)

	balance := env.openCharge(t, order.ID)
	assert.Equal(t, model.PurposeBalance, balance.Purpose)
	assert.Equal(t, int64(166800), balance.Amount)
	env.pay(t, "evt_2", balance)

	o = env.order(t, order.ID)
	assert.Equal(t, int64(176800), o.AmountPaid)
	assert.True(t, o.FullyPaid)
	assert.Equal(t, 2, env.email.Count())
	assert.Equal(t, int64(1), env.countRows(t, &model.Customer{}, ""))
}

func TestCustomerDedupedByEmailThenPhone(t *testing.T) {
	env := newTestEnv(t)

	first := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, first.ID, "sam@example.com", "0400000000")
	env.pay(t, "evt_1", env.openCharge(t, first.ID))

	second := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, second.ID, "other@example.com", "0400000000")
	env.pay(t, "evt_2", env.openCharge(t, second.ID))

	a, b := env.order(t, first.ID), env.order(t, second.ID)
	require.NotNil(t, a.CustomerID)
	require.NotNil(t, b.CustomerID)
	assert.Equal(t, *a.CustomerID, *b.CustomerID)
	assert.Equal(t, int64(1), env.countRows(t, &model.Customer{}, ""))
}

func TestEmailFailureIsRecordedAndPaymentStays(t *testing.T) {
	env := newTestEnv(t)
	env.email.Err = errors.New("smtp down")
	order := env.createOrder(t, "4W", model.PlanFull)
	env.addDelivery(t, order.ID, "sam@example.com", "0400000000")
	p := env.openCharge(t, order.ID)

	env.pay(t, "evt_1", p)

	assert.Equal(t, model.PaymentPaid, env.payment(t, p.ID).Status)
	confirmation, err := env.confirmations.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmation.EmailAttempts)
	assert.Nil(t, confirmation.EmailSentAt)
	assert.Contains(t, confirmation.LastError, "email: smtp down")

	env.email.Err = nil
	require.NoError(t, env.confirmations.SendEmail(context.Background(), order.ID))
	confirmation, err = env.confirmations.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, confirmation.EmailAttempts)
	assert.NotNil(t, confirmation.EmailSentAt)
	assert.Empty(t, confirmation.LastError)
}

func TestSuccessRecomputesUnderOrderLock(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "4W", model.PlanFull)
	p := env.openCharge(t, order.ID)
	reads := testutil.RecordLockedReads(t, env.db)

	env.pay(t, "evt_1", p)
	// order locked before the payment moves, then the aggregate reads lock order and payments
	assert.Equal(t, []string{"orders", "orders", "payments"}, reads.Tables())

	reads.Reset()
	require.NoError(t, env.deliver(t, testutil.CheckoutEvent("evt_2", webhook.TypeCheckoutAsyncSucceeded, p, "paid", "card")))
	// nothing moved, so no aggregate write
	assert.Equal(t, []string{"orders"}, reads.Tables())
	assert.Equal(t, int64(90000), env.order(t, order.ID).AmountPaid)
	assert.True(t, env.order(t, order.ID).FullyPaid)
}
