package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/service/balance"
	"github.com/folahanmi/orgledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func setup(t *testing.T, balanceMinor int64) (*memory.Store, Service, uuid.UUID, finance.Account) {
	t.Helper()
	store := memory.New()
	orgID := uuid.New()
	acc := finance.Account{
		ID:                  uuid.New(),
		OrgID:               orgID,
		Name:                "Main Bank",
		Type:                finance.AccountTypeBank,
		Currency:            "NGN",
		OpeningBalanceMinor: balanceMinor,
		BalanceMinor:        balanceMinor,
		Active:              true,
	}
	store.SeedAccount(acc)
	ledger := balance.New(store, store, testLogger())
	return store, New(store, store, ledger), orgID, acc
}

func addPosting(t *testing.T, store *memory.Store, orgID uuid.UUID, accountID uuid.UUID, side finance.Side, amount int64) finance.Posting {
	t.Helper()
	ctx := context.Background()
	p, err := store.CreatePosting(ctx, finance.Posting{
		ID:        uuid.New(),
		OrgID:     orgID,
		AccountID: accountID,
		Side:      side,
		Kind:      finance.PostingKindIncome,
		Amount:    amount,
		Date:      time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = store.AdjustAccountBalance(ctx, orgID, accountID, p.EffectMinor())
	require.NoError(t, err)
	return p
}

func TestCreateSnapshotsBookBalance(t *testing.T) {
	_, svc, orgID, acc := setup(t, 150000)

	r, err := svc.Create(context.Background(), orgID, acc.ID, 152500, time.Time{}, "June statement")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), r.BookBalanceMinor)
	assert.Equal(t, int64(2500), r.DifferenceMinor)
	assert.Equal(t, finance.ReconciliationStatusPending, r.Status)
}

func TestToggleDrivesStatus(t *testing.T) {
	store, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()
	p := addPosting(t, store, orgID, acc.ID, finance.SideCredit, 25000)

	// Bank agrees with the book: matching the single posting closes the session.
	r, err := svc.Create(ctx, orgID, acc.ID, 125000, time.Time{}, "")
	require.NoError(t, err)
	require.Equal(t, finance.ReconciliationStatusPending, r.Status)

	r, err = svc.ToggleEntry(ctx, orgID, r.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ReconciliationStatusReconciled, r.Status)

	marked, err := store.GetPosting(ctx, orgID, p.ID)
	require.NoError(t, err)
	assert.True(t, marked.Reconciled)

	// Toggling back off reopens the session.
	r, err = svc.ToggleEntry(ctx, orgID, r.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ReconciliationStatusPending, r.Status)
}

func TestTogglePostingOwnedByAnotherSession(t *testing.T) {
	store, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()
	p := addPosting(t, store, orgID, acc.ID, finance.SideCredit, 25000)

	r1, err := svc.Create(ctx, orgID, acc.ID, 125000, time.Time{}, "")
	require.NoError(t, err)
	_, err = svc.ToggleEntry(ctx, orgID, r1.ID, p.ID)
	require.NoError(t, err)

	r2, err := svc.Create(ctx, orgID, acc.ID, 125000, time.Time{}, "")
	require.NoError(t, err)
	_, err = svc.ToggleEntry(ctx, orgID, r2.ID, p.ID)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestAddEntryBankFee(t *testing.T) {
	store, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()
	addPosting(t, store, orgID, acc.ID, finance.SideCredit, 25000)

	// The bank reports 2000 less than the book: an unrecorded fee.
	r, err := svc.Create(ctx, orgID, acc.ID, 123000, time.Time{}, "")
	require.NoError(t, err)
	require.Equal(t, int64(-2000), r.DifferenceMinor)

	r, fee, err := svc.AddEntry(ctx, orgID, r.ID, AddEntryInput{
		Side:   finance.SideDebit,
		Kind:   finance.PostingKindExpenditure,
		Amount: 2000,
		Memo:   "bank charge",
	})
	require.NoError(t, err)
	assert.True(t, fee.AddedInSession)
	assert.Equal(t, int64(123000), r.BookBalanceMinor)
	assert.Equal(t, int64(0), r.DifferenceMinor)

	got, err := store.GetAccount(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(123000), got.BalanceMinor)
}

func TestAddEntryRejectedDebitLeavesSessionUntouched(t *testing.T) {
	store, svc, orgID, acc := setup(t, 1000)
	ctx := context.Background()

	r, err := svc.Create(ctx, orgID, acc.ID, 1000, time.Time{}, "")
	require.NoError(t, err)

	_, _, err = svc.AddEntry(ctx, orgID, r.ID, AddEntryInput{
		Side:   finance.SideDebit,
		Kind:   finance.PostingKindExpenditure,
		Amount: 5000,
	})
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)

	after, err := svc.Get(ctx, orgID, r.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Added)

	got, err := store.GetAccount(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.BalanceMinor)
}

func TestRefreshIsNoOpWhenConverged(t *testing.T) {
	_, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()

	r, err := svc.Create(ctx, orgID, acc.ID, 100000, time.Time{}, "")
	require.NoError(t, err)
	// Difference is zero and nothing is outstanding, so the session closes at
	// creation time already.
	assert.Equal(t, finance.ReconciliationStatusReconciled, r.Status)

	// Repeated refresh against unchanged state must converge, not loop.
	first, err := svc.Refresh(ctx, orgID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ReconciliationStatusReconciled, first.Status)
	second, err := svc.Refresh(ctx, orgID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSecondSessionClosesAfterFirstIsKept(t *testing.T) {
	store, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()
	p1 := addPosting(t, store, orgID, acc.ID, finance.SideCredit, 25000)

	r1, err := svc.Create(ctx, orgID, acc.ID, 125000, time.Time{}, "June")
	require.NoError(t, err)
	r1, err = svc.ToggleEntry(ctx, orgID, r1.ID, p1.ID)
	require.NoError(t, err)
	require.Equal(t, finance.ReconciliationStatusReconciled, r1.Status)

	// New month, one fresh posting. The posting settled under the June session
	// must not hold July open.
	p2 := addPosting(t, store, orgID, acc.ID, finance.SideCredit, 10000)
	r2, err := svc.Create(ctx, orgID, acc.ID, 135000, time.Time{}, "July")
	require.NoError(t, err)
	require.Equal(t, finance.ReconciliationStatusPending, r2.Status)

	r2, err = svc.ToggleEntry(ctx, orgID, r2.ID, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ReconciliationStatusReconciled, r2.Status)

	// With nothing new at all, the follow-up session closes at creation.
	r3, err := svc.Create(ctx, orgID, acc.ID, 135000, time.Time{}, "August")
	require.NoError(t, err)
	assert.Equal(t, finance.ReconciliationStatusReconciled, r3.Status)
}

func TestSecondSessionSelectAllCloses(t *testing.T) {
	store, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()
	p := addPosting(t, store, orgID, acc.ID, finance.SideCredit, 25000)

	r1, err := svc.Create(ctx, orgID, acc.ID, 125000, time.Time{}, "")
	require.NoError(t, err)
	_, err = svc.ToggleEntry(ctx, orgID, r1.ID, p.ID)
	require.NoError(t, err)

	r2, err := svc.Create(ctx, orgID, acc.ID, 125000, time.Time{}, "")
	require.NoError(t, err)
	r2, err = svc.SelectAll(ctx, orgID, r2.ID, true)
	require.NoError(t, err)
	assert.Equal(t, finance.ReconciliationStatusReconciled, r2.Status)
}

func TestToggleRejectsReversedPosting(t *testing.T) {
	store, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()
	p := addPosting(t, store, orgID, acc.ID, finance.SideCredit, 25000)
	p.Reversed = true
	_, err := store.UpdatePosting(ctx, p)
	require.NoError(t, err)

	r, err := svc.Create(ctx, orgID, acc.ID, 125000, time.Time{}, "")
	require.NoError(t, err)
	_, err = svc.ToggleEntry(ctx, orgID, r.ID, p.ID)
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestDeleteUnmarksButKeepsSessionPostings(t *testing.T) {
	store, svc, orgID, acc := setup(t, 100000)
	ctx := context.Background()
	p := addPosting(t, store, orgID, acc.ID, finance.SideCredit, 25000)

	r, err := svc.Create(ctx, orgID, acc.ID, 123000, time.Time{}, "")
	require.NoError(t, err)
	r, err = svc.ToggleEntry(ctx, orgID, r.ID, p.ID)
	require.NoError(t, err)
	r, fee, err := svc.AddEntry(ctx, orgID, r.ID, AddEntryInput{
		Side:   finance.SideDebit,
		Kind:   finance.PostingKindExpenditure,
		Amount: 2000,
		Memo:   "bank charge",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, orgID, r.ID))

	_, err = svc.Get(ctx, orgID, r.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// Matched flags are cleared; the fee posting and its ledger effect persist.
	unmarked, err := store.GetPosting(ctx, orgID, p.ID)
	require.NoError(t, err)
	assert.False(t, unmarked.Reconciled)
	assert.Nil(t, unmarked.ReconciliationID)

	kept, err := store.GetPosting(ctx, orgID, fee.ID)
	require.NoError(t, err)
	assert.True(t, kept.AddedInSession)

	got, err := store.GetAccount(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(123000), got.BalanceMinor)
}
