package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
)

func newPosting(orgID, accountID uuid.UUID, amount int64) finance.Posting {
	return finance.Posting{
		ID:        uuid.New(),
		OrgID:     orgID,
		AccountID: accountID,
		Side:      finance.SideCredit,
		Kind:      finance.PostingKindIncome,
		Amount:    amount,
		Date:      time.Now().UTC(),
	}
}

func TestListPostingsKeepsCommitOrder(t *testing.T) {
	store := New()
	ctx := context.Background()
	orgID := uuid.New()
	accountID := uuid.New()

	// Commit with descending business dates; the list must still come back in
	// commit order.
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		p := newPosting(orgID, accountID, int64(100*(i+1)))
		p.Date = time.Now().UTC().AddDate(0, 0, -i)
		created, err := store.CreatePosting(ctx, p)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	got, err := store.ListPostings(ctx, orgID, finance.PostingFilter{})
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, p := range got {
		assert.Equal(t, ids[i], p.ID)
	}
}

func TestDeletePostingRemovesFromOrder(t *testing.T) {
	store := New()
	ctx := context.Background()
	orgID := uuid.New()
	accountID := uuid.New()

	first, err := store.CreatePosting(ctx, newPosting(orgID, accountID, 100))
	require.NoError(t, err)
	second, err := store.CreatePosting(ctx, newPosting(orgID, accountID, 200))
	require.NoError(t, err)

	require.NoError(t, store.DeletePosting(ctx, orgID, first.ID))

	got, err := store.ListPostings(ctx, orgID, finance.PostingFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second.ID, got[0].ID)

	require.ErrorIs(t, store.DeletePosting(ctx, orgID, first.ID), errs.ErrNotFound)
}

func TestAdjustAccountBalanceRejectsNegative(t *testing.T) {
	store := New()
	ctx := context.Background()
	orgID := uuid.New()
	acc := finance.Account{
		ID:           uuid.New(),
		OrgID:        orgID,
		Name:         "Cash",
		Type:         finance.AccountTypeCash,
		Currency:     "NGN",
		BalanceMinor: 500,
		Active:       true,
	}
	store.SeedAccount(acc)

	_, err := store.AdjustAccountBalance(ctx, orgID, acc.ID, -501)
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)

	got, err := store.AdjustAccountBalance(ctx, orgID, acc.ID, -500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.BalanceMinor)
}

func TestIdempotencyKeyFirstWriteWins(t *testing.T) {
	store := New()
	ctx := context.Background()
	orgID := uuid.New()

	_, ok, err := store.ResolveIdempotencyKey(ctx, orgID, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveIdempotencyKey(ctx, orgID, "k1", []byte(`{"n":1}`)))
	require.NoError(t, store.SaveIdempotencyKey(ctx, orgID, "k1", []byte(`{"n":2}`)))

	payload, ok, err := store.ResolveIdempotencyKey(ctx, orgID, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"n":1}`), payload)

	// Keys are scoped per org.
	_, ok, err = store.ResolveIdempotencyKey(ctx, uuid.New(), "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}
