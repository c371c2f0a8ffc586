package liability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/storage/memory"
)

func setup(t *testing.T) (*memory.Store, Service, uuid.UUID) {
	t.Helper()
	store := memory.New()
	return store, New(store, store), uuid.New()
}

func paymentPosting(t *testing.T, store *memory.Store, orgID uuid.UUID, amount int64) finance.Posting {
	t.Helper()
	p, err := store.CreatePosting(context.Background(), finance.Posting{
		ID:        uuid.New(),
		OrgID:     orgID,
		AccountID: uuid.New(),
		Side:      finance.SideDebit,
		Kind:      finance.PostingKindLiabilityPayment,
		Amount:    amount,
		Date:      time.Now().UTC(),
	})
	require.NoError(t, err)
	return p
}

func TestCreateIgnoresSubmittedAmountPaid(t *testing.T) {
	_, svc, orgID := setup(t)

	l, err := svc.Create(context.Background(), finance.Liability{
		OrgID:               orgID,
		Creditor:            "Supplies Ltd",
		OriginalAmountMinor: 100000,
		AmountPaidMinor:     99999,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.AmountPaidMinor)
	assert.Equal(t, finance.LiabilityStatusNotPaid, l.Status())
	assert.Equal(t, int64(100000), l.BalanceMinor())
}

func TestRecordPaymentDerivesStatus(t *testing.T) {
	store, svc, orgID := setup(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, finance.Liability{OrgID: orgID, Creditor: "Supplies Ltd", OriginalAmountMinor: 100000})
	require.NoError(t, err)

	p1 := paymentPosting(t, store, orgID, 40000)
	l, err = svc.RecordPayment(ctx, orgID, l.ID, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), l.AmountPaidMinor)
	assert.Equal(t, finance.LiabilityStatusPartiallyPaid, l.Status())
	assert.Equal(t, int64(60000), l.BalanceMinor())

	p2 := paymentPosting(t, store, orgID, 60000)
	l, err = svc.RecordPayment(ctx, orgID, l.ID, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.LiabilityStatusPaid, l.Status())
	assert.Equal(t, int64(0), l.BalanceMinor())
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	store, svc, orgID := setup(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, finance.Liability{OrgID: orgID, Creditor: "Supplies Ltd", OriginalAmountMinor: 50000})
	require.NoError(t, err)

	p1 := paymentPosting(t, store, orgID, 40000)
	_, err = svc.RecordPayment(ctx, orgID, l.ID, p1.ID)
	require.NoError(t, err)

	// 40000 paid, 10000 outstanding; 20000 must be rejected before any write.
	p2 := paymentPosting(t, store, orgID, 20000)
	_, err = svc.RecordPayment(ctx, orgID, l.ID, p2.ID)
	require.ErrorIs(t, err, errs.ErrOverpayment)

	got, err := svc.Get(ctx, orgID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), got.AmountPaidMinor)

	unlinked, err := store.GetPosting(ctx, orgID, p2.ID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.LiabilityID)
}

func TestRecordPaymentIdempotentPerPosting(t *testing.T) {
	store, svc, orgID := setup(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, finance.Liability{OrgID: orgID, Creditor: "Supplies Ltd", OriginalAmountMinor: 50000})
	require.NoError(t, err)

	p := paymentPosting(t, store, orgID, 30000)
	l, err = svc.RecordPayment(ctx, orgID, l.ID, p.ID)
	require.NoError(t, err)

	// Linking the same posting again must not double-count it.
	l, err = svc.RecordPayment(ctx, orgID, l.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), l.AmountPaidMinor)
}

func TestUpdateFreezesAmountsOncePaymentsExist(t *testing.T) {
	store, svc, orgID := setup(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, finance.Liability{OrgID: orgID, Creditor: "Supplies Ltd", OriginalAmountMinor: 50000})
	require.NoError(t, err)

	// Before any payment the original amount may still be edited.
	edit := l
	edit.OriginalAmountMinor = 60000
	l, err = svc.Update(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), l.OriginalAmountMinor)

	p := paymentPosting(t, store, orgID, 10000)
	l, err = svc.RecordPayment(ctx, orgID, l.ID, p.ID)
	require.NoError(t, err)

	frozen := l
	frozen.OriginalAmountMinor = 70000
	_, err = svc.Update(ctx, frozen)
	require.ErrorIs(t, err, errs.ErrImmutable)

	derived := l
	derived.AmountPaidMinor = 0
	_, err = svc.Update(ctx, derived)
	require.ErrorIs(t, err, errs.ErrImmutable)

	// Descriptive fields stay editable.
	desc := l
	desc.Description = "restock invoice"
	updated, err := svc.Update(ctx, desc)
	require.NoError(t, err)
	assert.Equal(t, "restock invoice", updated.Description)
}

func TestUnlinkPaymentReopensPaidLiability(t *testing.T) {
	store, svc, orgID := setup(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, finance.Liability{OrgID: orgID, Creditor: "Supplies Ltd", OriginalAmountMinor: 50000})
	require.NoError(t, err)

	p1 := paymentPosting(t, store, orgID, 20000)
	p2 := paymentPosting(t, store, orgID, 30000)
	_, err = svc.RecordPayment(ctx, orgID, l.ID, p1.ID)
	require.NoError(t, err)
	l, err = svc.RecordPayment(ctx, orgID, l.ID, p2.ID)
	require.NoError(t, err)
	require.Equal(t, finance.LiabilityStatusPaid, l.Status())

	// Paid is not terminal: removing a payment reopens the liability.
	l, err = svc.UnlinkPayment(ctx, orgID, l.ID, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), l.AmountPaidMinor)
	assert.Equal(t, finance.LiabilityStatusPartiallyPaid, l.Status())
}

func TestRecomputeConverges(t *testing.T) {
	store, svc, orgID := setup(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, finance.Liability{OrgID: orgID, Creditor: "Supplies Ltd", OriginalAmountMinor: 50000})
	require.NoError(t, err)
	p := paymentPosting(t, store, orgID, 20000)
	l, err = svc.RecordPayment(ctx, orgID, l.ID, p.ID)
	require.NoError(t, err)

	// Recompute against an unchanged payment set is a no-op.
	again, err := svc.Recompute(ctx, orgID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, again)
}
