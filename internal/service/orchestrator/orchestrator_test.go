package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/service/balance"
	"github.com/folahanmi/orgledger/internal/service/liability"
	"github.com/folahanmi/orgledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// flakyStore lets a test fail chosen store operations mid-recipe.
type flakyStore struct {
	*memory.Store
	failCreatePostingKind finance.PostingKind
	failDeletePosting     bool
}

func (f *flakyStore) CreatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error) {
	if f.failCreatePostingKind != "" && p.Kind == f.failCreatePostingKind {
		return finance.Posting{}, errors.New("store write refused")
	}
	return f.Store.CreatePosting(ctx, p)
}

func (f *flakyStore) DeletePosting(ctx context.Context, orgID, postingID uuid.UUID) error {
	if f.failDeletePosting {
		return errors.New("store delete refused")
	}
	return f.Store.DeletePosting(ctx, orgID, postingID)
}

func newService(store Store, idem IdemStore, repo *memory.Store) *Service {
	logger := testLogger()
	ledger := balance.New(repo, repo, logger)
	liab := liability.New(repo, repo)
	return New(store, idem, ledger, liab, logger)
}

func seedAccount(store *memory.Store, orgID uuid.UUID, name string, balanceMinor int64) finance.Account {
	acc := finance.Account{
		ID:                  uuid.New(),
		OrgID:               orgID,
		Name:                name,
		Type:                finance.AccountTypeBank,
		Currency:            "NGN",
		OpeningBalanceMinor: balanceMinor,
		BalanceMinor:        balanceMinor,
		Active:              true,
	}
	store.SeedAccount(acc)
	return acc
}

func TestCreateAccountWithOpeningBalance(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()

	res, err := svc.CreateAccountWithOpeningBalance(ctx, CreateAccountInput{
		OrgID:               orgID,
		Name:                "Cash Box",
		Type:                finance.AccountTypeCash,
		Currency:            "NGN",
		OpeningBalanceMinor: 50000,
	})
	require.NoError(t, err)

	// The opening amount lives in the ledger, not outside it: the account is
	// created with a zero opening field and one opening_balance credit posting.
	assert.Equal(t, int64(50000), res.Account.BalanceMinor)
	assert.Equal(t, int64(0), res.Account.OpeningBalanceMinor)
	require.NotNil(t, res.OpeningPosting)
	assert.Equal(t, finance.PostingKindOpeningBalance, res.OpeningPosting.Kind)
	assert.Equal(t, finance.SideCredit, res.OpeningPosting.Side)

	postings, err := store.ListPostingsByAccount(ctx, orgID, res.Account.ID)
	require.NoError(t, err)
	require.Len(t, postings, 1)
}

func TestCreateAccountRejectsUnknownCurrency(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)

	_, err := svc.CreateAccountWithOpeningBalance(context.Background(), CreateAccountInput{
		OrgID:    uuid.New(),
		Name:     "Cash Box",
		Type:     finance.AccountTypeCash,
		Currency: "ZZZ",
	})
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestRecordPostingAppliesBalance(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	acc := seedAccount(store, orgID, "Main Bank", 10000)

	res, err := svc.RecordPosting(ctx, RecordPostingInput{
		OrgID:     orgID,
		AccountID: acc.ID,
		Kind:      finance.PostingKindIncome,
		Amount:    4000,
	})
	require.NoError(t, err)
	assert.Equal(t, finance.SideCredit, res.Posting.Side)
	assert.Equal(t, int64(14000), res.Account.BalanceMinor)

	_, err = svc.RecordPosting(ctx, RecordPostingInput{
		OrgID:     orgID,
		AccountID: acc.ID,
		Kind:      finance.PostingKindExpenditure,
		Amount:    20000,
	})
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)
}

func TestCreateTransferMovesBothLegs(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	src := seedAccount(store, orgID, "Main Bank", 100000)
	dst := seedAccount(store, orgID, "Cash Box", 5000)

	res, err := svc.CreateTransfer(ctx, CreateTransferInput{
		OrgID:         orgID,
		FromAccountID: src.ID,
		ToAccountID:   dst.ID,
		Amount:        30000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70000), res.From.BalanceMinor)
	assert.Equal(t, int64(35000), res.To.BalanceMinor)

	debit, err := store.GetPosting(ctx, orgID, res.Transfer.DebitPostingID)
	require.NoError(t, err)
	assert.Equal(t, finance.PostingKindTransferOut, debit.Kind)
	credit, err := store.GetPosting(ctx, orgID, res.Transfer.CreditPostingID)
	require.NoError(t, err)
	assert.Equal(t, finance.PostingKindTransferIn, credit.Kind)
}

func TestCreateTransferInsufficientFundsWritesNothing(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	src := seedAccount(store, orgID, "Main Bank", 1000)
	dst := seedAccount(store, orgID, "Cash Box", 0)

	_, err := svc.CreateTransfer(ctx, CreateTransferInput{
		OrgID:         orgID,
		FromAccountID: src.ID,
		ToAccountID:   dst.ID,
		Amount:        5000,
	})
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)

	gotSrc, _ := store.GetAccount(ctx, orgID, src.ID)
	gotDst, _ := store.GetAccount(ctx, orgID, dst.ID)
	assert.Equal(t, int64(1000), gotSrc.BalanceMinor)
	assert.Equal(t, int64(0), gotDst.BalanceMinor)

	postings, err := store.ListPostings(ctx, orgID, finance.PostingFilter{})
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestCreateTransferRollsBackOnMidSequenceFailure(t *testing.T) {
	mem := memory.New()
	// The final credit-leg posting write fails; everything before it must be
	// compensated in reverse order.
	store := &flakyStore{Store: mem, failCreatePostingKind: finance.PostingKindTransferIn}
	svc := newService(store, mem, mem)
	ctx := context.Background()
	orgID := uuid.New()
	src := seedAccount(mem, orgID, "Main Bank", 100000)
	dst := seedAccount(mem, orgID, "Cash Box", 5000)

	_, err := svc.CreateTransfer(ctx, CreateTransferInput{
		OrgID:         orgID,
		FromAccountID: src.ID,
		ToAccountID:   dst.ID,
		Amount:        30000,
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, errs.ErrPartialCommit))

	gotSrc, _ := mem.GetAccount(ctx, orgID, src.ID)
	gotDst, _ := mem.GetAccount(ctx, orgID, dst.ID)
	assert.Equal(t, int64(100000), gotSrc.BalanceMinor)
	assert.Equal(t, int64(5000), gotDst.BalanceMinor)

	postings, err := mem.ListPostings(ctx, orgID, finance.PostingFilter{})
	require.NoError(t, err)
	assert.Empty(t, postings)

	transfers, err := mem.ListTransfers(ctx, orgID)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestCreateTransferEscalatesToPartialCommit(t *testing.T) {
	mem := memory.New()
	// The credit-leg write fails and the compensation of the debit-leg posting
	// fails too: the recipe must surface exactly what stayed committed.
	store := &flakyStore{
		Store:                 mem,
		failCreatePostingKind: finance.PostingKindTransferIn,
		failDeletePosting:     true,
	}
	svc := newService(store, mem, mem)
	ctx := context.Background()
	orgID := uuid.New()
	src := seedAccount(mem, orgID, "Main Bank", 100000)
	dst := seedAccount(mem, orgID, "Cash Box", 5000)

	_, err := svc.CreateTransfer(ctx, CreateTransferInput{
		OrgID:         orgID,
		FromAccountID: src.ID,
		ToAccountID:   dst.ID,
		Amount:        30000,
	})
	require.ErrorIs(t, err, errs.ErrPartialCommit)

	var pce *PartialCommitError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, "CreateTransfer", pce.Recipe)
	assert.Equal(t, "create_credit_posting", pce.FailedStep)
	assert.Contains(t, pce.Committed, "create_debit_posting")
}

func TestIdempotentReplayReturnsStoredResult(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	acc := seedAccount(store, orgID, "Main Bank", 10000)

	first, err := svc.RecordPosting(ctx, RecordPostingInput{
		OrgID:          orgID,
		AccountID:      acc.ID,
		Kind:           finance.PostingKindIncome,
		Amount:         4000,
		IdempotencyKey: "req-42",
	})
	require.NoError(t, err)

	second, err := svc.RecordPosting(ctx, RecordPostingInput{
		OrgID:          orgID,
		AccountID:      acc.ID,
		Kind:           finance.PostingKindIncome,
		Amount:         4000,
		IdempotencyKey: "req-42",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Posting.ID, second.Posting.ID)

	// The replay ran no writes: still a single posting, balance applied once.
	postings, err := store.ListPostingsByAccount(ctx, orgID, acc.ID)
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	got, _ := store.GetAccount(ctx, orgID, acc.ID)
	assert.Equal(t, int64(14000), got.BalanceMinor)
}

func TestPayLiabilityLinksAndDebits(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	acc := seedAccount(store, orgID, "Main Bank", 100000)

	created, err := svc.CreateLiabilityWithInitialPayment(ctx, CreateLiabilityInput{
		OrgID:               orgID,
		Creditor:            "Supplies Ltd",
		OriginalAmountMinor: 60000,
	})
	require.NoError(t, err)

	res, err := svc.PayLiability(ctx, PayLiabilityInput{
		OrgID:       orgID,
		LiabilityID: created.Liability.ID,
		Payment:     PaymentInput{AccountID: acc.ID, Amount: 25000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), res.Liability.AmountPaidMinor)
	assert.Equal(t, finance.LiabilityStatusPartiallyPaid, res.Liability.Status())
	require.NotNil(t, res.Account)
	assert.Equal(t, int64(75000), res.Account.BalanceMinor)
	require.NotNil(t, res.Payment)
	assert.Equal(t, finance.PostingKindLiabilityPayment, res.Payment.Kind)

	_, err = svc.PayLiability(ctx, PayLiabilityInput{
		OrgID:       orgID,
		LiabilityID: created.Liability.ID,
		Payment:     PaymentInput{AccountID: acc.ID, Amount: 40000},
	})
	require.ErrorIs(t, err, errs.ErrOverpayment)
}

func TestCreateLiabilityWithInitialPayment(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	acc := seedAccount(store, orgID, "Main Bank", 100000)

	res, err := svc.CreateLiabilityWithInitialPayment(ctx, CreateLiabilityInput{
		OrgID:               orgID,
		Creditor:            "Supplies Ltd",
		OriginalAmountMinor: 60000,
		InitialPayment:      &PaymentInput{AccountID: acc.ID, Amount: 60000},
	})
	require.NoError(t, err)
	assert.Equal(t, finance.LiabilityStatusPaid, res.Liability.Status())
	require.NotNil(t, res.Account)
	assert.Equal(t, int64(40000), res.Account.BalanceMinor)
}

func TestDeletePostingReversesAndRecomputes(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	acc := seedAccount(store, orgID, "Main Bank", 100000)

	created, err := svc.CreateLiabilityWithInitialPayment(ctx, CreateLiabilityInput{
		OrgID:               orgID,
		Creditor:            "Supplies Ltd",
		OriginalAmountMinor: 60000,
		InitialPayment:      &PaymentInput{AccountID: acc.ID, Amount: 60000},
	})
	require.NoError(t, err)
	require.NotNil(t, created.Payment)

	res, err := svc.DeletePosting(ctx, DeletePostingInput{OrgID: orgID, PostingID: created.Payment.ID})
	require.NoError(t, err)
	assert.True(t, res.Posting.Reversed)
	assert.Equal(t, int64(100000), res.Account.BalanceMinor)
	require.NotNil(t, res.Liability)
	assert.Equal(t, int64(0), res.Liability.AmountPaidMinor)
	assert.Equal(t, finance.LiabilityStatusNotPaid, res.Liability.Status())

	// A second delete of the same posting conflicts.
	_, err = svc.DeletePosting(ctx, DeletePostingInput{OrgID: orgID, PostingID: created.Payment.ID})
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestDeletePostingRejectsReconciledAndTransferLegs(t *testing.T) {
	store := memory.New()
	svc := newService(store, store, store)
	ctx := context.Background()
	orgID := uuid.New()
	acc := seedAccount(store, orgID, "Main Bank", 100000)
	dst := seedAccount(store, orgID, "Cash Box", 0)

	res, err := svc.RecordPosting(ctx, RecordPostingInput{
		OrgID:     orgID,
		AccountID: acc.ID,
		Kind:      finance.PostingKindIncome,
		Amount:    5000,
	})
	require.NoError(t, err)

	p, err := store.GetPosting(ctx, orgID, res.Posting.ID)
	require.NoError(t, err)
	p.Reconciled = true
	_, err = store.UpdatePosting(ctx, p)
	require.NoError(t, err)

	_, err = svc.DeletePosting(ctx, DeletePostingInput{OrgID: orgID, PostingID: p.ID})
	require.ErrorIs(t, err, errs.ErrReconciledPosting)

	tr, err := svc.CreateTransfer(ctx, CreateTransferInput{
		OrgID:         orgID,
		FromAccountID: acc.ID,
		ToAccountID:   dst.ID,
		Amount:        1000,
	})
	require.NoError(t, err)
	_, err = svc.DeletePosting(ctx, DeletePostingInput{OrgID: orgID, PostingID: tr.Transfer.DebitPostingID})
	require.ErrorIs(t, err, errs.ErrInvalid)
}
