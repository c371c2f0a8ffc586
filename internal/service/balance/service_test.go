package balance

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func seedAccount(store *memory.Store, balanceMinor int64) (uuid.UUID, finance.Account) {
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
	return orgID, acc
}

func TestCreditAndDebit(t *testing.T) {
	store := memory.New()
	orgID, acc := seedAccount(store, 10000)
	svc := New(store, store, testLogger())
	ctx := context.Background()

	updated, err := svc.Credit(ctx, orgID, acc.ID, 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), updated.BalanceMinor)

	updated, err = svc.Debit(ctx, orgID, acc.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), updated.BalanceMinor)
}

func TestDebitInsufficientFundsRejectedWhole(t *testing.T) {
	store := memory.New()
	orgID, acc := seedAccount(store, 10000)
	svc := New(store, store, testLogger())
	ctx := context.Background()

	// The debit exceeding the balance fails entirely; no clamp to zero.
	_, err := svc.Debit(ctx, orgID, acc.ID, 10001)
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)

	got, err := store.GetAccount(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.BalanceMinor)
}

func TestConcurrentDebitsOnlyOneWins(t *testing.T) {
	store := memory.New()
	orgID, acc := seedAccount(store, 10000)
	svc := New(store, store, testLogger())
	ctx := context.Background()

	// Two debits that each pass a stale pre-check but cannot both commit.
	const n = 2
	errors := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errors[i] = svc.Debit(ctx, orgID, acc.ID, 8000)
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errors {
		if err != nil {
			require.ErrorIs(t, err, errs.ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "exactly one of the two debits must be rejected")

	got, err := store.GetAccount(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.BalanceMinor)
}

func TestReverseRestoresBalance(t *testing.T) {
	store := memory.New()
	orgID, acc := seedAccount(store, 10000)
	svc := New(store, store, testLogger())
	ctx := context.Background()

	p := finance.Posting{
		ID:        uuid.New(),
		OrgID:     orgID,
		AccountID: acc.ID,
		Side:      finance.SideDebit,
		Kind:      finance.PostingKindExpenditure,
		Amount:    3000,
		Date:      time.Now().UTC(),
	}
	_, err := svc.Debit(ctx, orgID, acc.ID, p.Amount)
	require.NoError(t, err)

	updated, err := svc.Reverse(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), updated.BalanceMinor)
}

func TestRecalculateHealsDrift(t *testing.T) {
	store := memory.New()
	orgID, acc := seedAccount(store, 10000)
	svc := New(store, store, testLogger())
	ctx := context.Background()

	for _, p := range []finance.Posting{
		{ID: uuid.New(), OrgID: orgID, AccountID: acc.ID, Side: finance.SideCredit, Kind: finance.PostingKindIncome, Amount: 5000, Date: time.Now().UTC()},
		{ID: uuid.New(), OrgID: orgID, AccountID: acc.ID, Side: finance.SideDebit, Kind: finance.PostingKindExpenditure, Amount: 2000, Date: time.Now().UTC()},
	} {
		_, err := store.CreatePosting(ctx, p)
		require.NoError(t, err)
	}

	// Simulate drift: the stored balance disagrees with the posting set.
	_, err := store.SetAccountBalance(ctx, orgID, acc.ID, 9999)
	require.NoError(t, err)

	healed, drifted, err := svc.Recalculate(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.True(t, drifted)
	assert.Equal(t, int64(13000), healed.BalanceMinor)

	// Re-running against a consistent ledger is a no-op.
	same, drifted, err := svc.Recalculate(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.False(t, drifted)
	assert.Equal(t, int64(13000), same.BalanceMinor)
}

func TestRecalculateSkipsReversedPostings(t *testing.T) {
	store := memory.New()
	orgID, acc := seedAccount(store, 1000)
	svc := New(store, store, testLogger())
	ctx := context.Background()

	_, err := store.CreatePosting(ctx, finance.Posting{
		ID: uuid.New(), OrgID: orgID, AccountID: acc.ID,
		Side: finance.SideCredit, Kind: finance.PostingKindIncome,
		Amount: 700, Date: time.Now().UTC(), Reversed: true,
	})
	require.NoError(t, err)

	got, drifted, err := svc.Recalculate(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.False(t, drifted)
	assert.Equal(t, int64(1000), got.BalanceMinor)
}
