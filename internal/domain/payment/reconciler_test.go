package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRecords is an in-memory Records with the same apply semantics as the
// SQL implementation: unconditional status set, paid_at set at most once.
type memRecords struct {
	records map[string]*Record
	applies int
	err     error
}

func newMemRecords(records ...*Record) *memRecords {
	m := &memRecords{records: make(map[string]*Record)}
	for _, r := range records {
		m.records[r.ProviderPaymentID] = r
	}
	return m
}

func (m *memRecords) ApplyStatus(_ context.Context, providerPaymentID string, status Status, paidAt time.Time) (*Record, error) {
	m.applies++
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[providerPaymentID]
	if !ok {
		return nil, nil
	}
	rec.Status = status
	if status.Paid() && rec.PaidAt == nil {
		t := paidAt
		rec.PaidAt = &t
	}
	copied := *rec
	return &copied, nil
}

type mockConfirmer struct {
	confirmed []string
	err       error
}

func (m *mockConfirmer) Confirm(_ context.Context, orderID string) error {
	if m.err != nil {
		return m.err
	}
	m.confirmed = append(m.confirmed, orderID)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestProcess_ConfirmedOrderPayment(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords(&Record{ID: "pr-1", ProviderPaymentID: "pay_1", OrderID: "ord-1", Status: StatusPending})
	confirmer := &mockConfirmer{}
	r := NewReconciler(orderRecs, newMemRecords(), confirmer)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r.now = fixedClock(now)

	res, err := r.Process(context.Background(), Event{
		Name:              "PAYMENT_CONFIRMED",
		ProviderPaymentID: "pay_1",
		ProviderStatus:    "CONFIRMED",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, res.Status)
	assert.True(t, res.OrderMatched)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.False(t, res.SubscriptionMatch)
	assert.Equal(t, []string{"ord-1"}, confirmer.confirmed)

	rec := orderRecs.records["pay_1"]
	require.NotNil(t, rec.PaidAt)
	assert.Equal(t, now, *rec.PaidAt)
}

func TestProcess_ReplayLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords(&Record{ID: "pr-1", ProviderPaymentID: "pay_1", OrderID: "ord-1", Status: StatusPending})
	confirmer := &mockConfirmer{}
	r := NewReconciler(orderRecs, newMemRecords(), confirmer)

	firstPaid := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r.now = fixedClock(firstPaid)

	ev := Event{ProviderPaymentID: "pay_1", ProviderStatus: "CONFIRMED"}

	first, err := r.Process(context.Background(), ev)
	require.NoError(t, err)

	// Replay an hour later: status and paid_at must not move.
	r.now = fixedClock(firstPaid.Add(time.Hour))
	second, err := r.Process(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	rec := orderRecs.records["pay_1"]
	assert.Equal(t, StatusConfirmed, rec.Status)
	require.NotNil(t, rec.PaidAt)
	assert.Equal(t, firstPaid, *rec.PaidAt)
}

func TestProcess_PaidAtSurvivesLaterRefund(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords(&Record{ProviderPaymentID: "pay_1", OrderID: "ord-1", Status: StatusPending})
	r := NewReconciler(orderRecs, newMemRecords(), &mockConfirmer{})
	paid := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r.now = fixedClock(paid)

	_, err := r.Process(context.Background(), Event{ProviderPaymentID: "pay_1", ProviderStatus: "RECEIVED"})
	require.NoError(t, err)

	r.now = fixedClock(paid.Add(48 * time.Hour))
	_, err = r.Process(context.Background(), Event{ProviderPaymentID: "pay_1", ProviderStatus: "REFUNDED"})
	require.NoError(t, err)

	rec := orderRecs.records["pay_1"]
	assert.Equal(t, StatusRefunded, rec.Status)
	require.NotNil(t, rec.PaidAt)
	assert.Equal(t, paid, *rec.PaidAt)
}

func TestProcess_SubscriptionPayment(t *testing.T) {
	t.Parallel()

	subRecs := newMemRecords(&Record{ProviderPaymentID: "pay_sub", SubscriptionID: "sub-1", Status: StatusPending})
	confirmer := &mockConfirmer{}
	r := NewReconciler(newMemRecords(), subRecs, confirmer)

	res, err := r.Process(context.Background(), Event{ProviderPaymentID: "pay_sub", ProviderStatus: "RECEIVED"})
	require.NoError(t, err)

	assert.False(t, res.OrderMatched)
	assert.True(t, res.SubscriptionMatch)
	assert.Equal(t, "sub-1", res.SubscriptionID)
	// Subscriptions have no order to cascade.
	assert.Empty(t, confirmer.confirmed)
}

func TestProcess_NoMatchIsSuccess(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords()
	subRecs := newMemRecords()
	r := NewReconciler(orderRecs, subRecs, &mockConfirmer{})

	res, err := r.Process(context.Background(), Event{ProviderPaymentID: "pay_unknown", ProviderStatus: "CONFIRMED"})
	require.NoError(t, err)
	assert.False(t, res.Matched())
	// Both kinds were consulted.
	assert.Equal(t, 1, orderRecs.applies)
	assert.Equal(t, 1, subRecs.applies)
}

func TestProcess_MalformedEvent(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords()
	r := NewReconciler(orderRecs, newMemRecords(), &mockConfirmer{})

	_, err := r.Process(context.Background(), Event{ProviderStatus: "CONFIRMED"})
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Zero(t, orderRecs.applies)
}

func TestProcess_UnknownStatusTreatedAsPending(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords(&Record{ProviderPaymentID: "pay_1", OrderID: "ord-1", Status: StatusConfirmed})
	confirmer := &mockConfirmer{}
	r := NewReconciler(orderRecs, newMemRecords(), confirmer)

	res, err := r.Process(context.Background(), Event{ProviderPaymentID: "pay_1", ProviderStatus: "SPLIT_CANCELLED"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	// Not paid, so no order cascade.
	assert.Empty(t, confirmer.confirmed)
}

func TestProcess_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider string
		want     Status
		known    bool
	}{
		{"PENDING", StatusPending, true},
		{"RECEIVED", StatusReceived, true},
		{"CONFIRMED", StatusConfirmed, true},
		{"OVERDUE", StatusOverdue, true},
		{"REFUNDED", StatusRefunded, true},
		{"RECEIVED_IN_CASH", StatusReceived, true},
		{"REFUND_REQUESTED", StatusRefundRequested, true},
		{"CHARGEBACK_REQUESTED", StatusPending, false},
		{"", StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			got, ok := MapProviderStatus(tt.provider)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, ok)
		})
	}
}

func TestProcess_RecordsErrorPropagates(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords()
	orderRecs.err = errors.New("db down")
	r := NewReconciler(orderRecs, newMemRecords(), &mockConfirmer{})

	_, err := r.Process(context.Background(), Event{ProviderPaymentID: "pay_1", ProviderStatus: "CONFIRMED"})
	require.Error(t, err)
}

func TestProcess_ConfirmErrorPropagates(t *testing.T) {
	t.Parallel()

	orderRecs := newMemRecords(&Record{ProviderPaymentID: "pay_1", OrderID: "ord-1"})
	confirmer := &mockConfirmer{err: errors.New("db down")}
	r := NewReconciler(orderRecs, newMemRecords(), confirmer)

	_, err := r.Process(context.Background(), Event{ProviderPaymentID: "pay_1", ProviderStatus: "CONFIRMED"})
	require.Error(t, err)
}

func TestStatusPaid(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusReceived.Paid())
	assert.True(t, StatusConfirmed.Paid())
	assert.False(t, StatusPending.Paid())
	assert.False(t, StatusOverdue.Paid())
	assert.False(t, StatusRefunded.Paid())
	assert.False(t, StatusRefundRequested.Paid())
}
