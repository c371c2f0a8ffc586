package postgres

// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the services.
//
// It is intentionally small and explicit. Migrations that create the expected
// schema live under db/migrations. This package focuses on mapping between the
// domain entities and SQL rows and running the necessary statements.

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/meta"
)

// Store holds a pgx connection pool and implements the read/write interfaces
// used across the service layer. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Organizations ---

func (s *Store) GetOrganization(ctx context.Context, orgID uuid.UUID) (finance.Organization, error) {
	var o finance.Organization
	err := s.pool.QueryRow(ctx, `
        select id, name, currency from organizations where id = $1
    `, orgID).Scan(&o.ID, &o.Name, &o.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Organization{}, errs.ErrNotFound
	}
	if err != nil {
		return finance.Organization{}, err
	}
	return o, nil
}

// --- Accounts ---

const accountCols = `id, org_id, name, type, currency, opening_balance_minor, balance_minor, metadata, active`

func scanAccount(row pgx.Row) (finance.Account, error) {
	var a finance.Account
	var mdBytes []byte
	if err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.Type, &a.Currency, &a.OpeningBalanceMinor, &a.BalanceMinor, &mdBytes, &a.Active); err != nil {
		return finance.Account{}, err
	}
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err == nil {
			a.Metadata = m
		}
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a finance.Account) (finance.Account, error) {
	if err := a.Metadata.Validate(); err != nil {
		return finance.Account{}, err
	}
	md, _ := a.Metadata.MarshalStableJSON()
	_, err := s.pool.Exec(ctx, `
        insert into accounts (id, org_id, name, type, currency, opening_balance_minor, balance_minor, metadata, active)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, a.ID, a.OrgID, a.Name, a.Type, strings.ToUpper(a.Currency), a.OpeningBalanceMinor, a.BalanceMinor, md, a.Active)
	if err != nil {
		return finance.Account{}, err
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, orgID, accountID uuid.UUID) (finance.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
        select `+accountCols+` from accounts where id = $1 and org_id = $2
    `, accountID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) ListAccounts(ctx context.Context, orgID uuid.UUID) ([]finance.Account, error) {
	rows, err := s.pool.Query(ctx, `
        select `+accountCols+` from accounts where org_id = $1 order by name
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]finance.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAccount updates descriptive fields and the active flag. Balance moves
// only through AdjustAccountBalance and SetAccountBalance.
func (s *Store) UpdateAccount(ctx context.Context, a finance.Account) (finance.Account, error) {
	if err := a.Metadata.Validate(); err != nil {
		return finance.Account{}, err
	}
	md, _ := a.Metadata.MarshalStableJSON()
	ct, err := s.pool.Exec(ctx, `
        update accounts set name=$1, metadata=$2, active=$3 where id=$4 and org_id=$5
    `, a.Name, md, a.Active, a.ID, a.OrgID)
	if err != nil {
		return finance.Account{}, err
	}
	if ct.RowsAffected() == 0 {
		return finance.Account{}, errs.ErrNotFound
	}
	return s.GetAccount(ctx, a.OrgID, a.ID)
}

// AdjustAccountBalance applies a signed delta with the negative-balance check
// in the statement itself, so concurrent debits cannot interleave past it.
func (s *Store) AdjustAccountBalance(ctx context.Context, orgID, accountID uuid.UUID, deltaMinor int64) (finance.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
        update accounts
        set balance_minor = balance_minor + $3
        where id = $1 and org_id = $2 and balance_minor + $3 >= 0
        returning `+accountCols+`
    `, accountID, orgID, deltaMinor))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing account from a rejected debit.
		if _, gerr := s.GetAccount(ctx, orgID, accountID); gerr != nil {
			return finance.Account{}, gerr
		}
		return finance.Account{}, errs.ErrInsufficientFunds
	}
	return a, err
}

// SetAccountBalance overwrites the running balance. Recalculation self-heal only.
func (s *Store) SetAccountBalance(ctx context.Context, orgID, accountID uuid.UUID, balanceMinor int64) (finance.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
        update accounts set balance_minor = $3 where id = $1 and org_id = $2
        returning `+accountCols+`
    `, accountID, orgID, balanceMinor))
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) DeleteAccount(ctx context.Context, orgID, accountID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from accounts where id=$1 and org_id=$2`, accountID, orgID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Postings ---

const postingCols = `id, org_id, account_id, side, kind, amount_minor, date, memo, category_id,
    liability_id, reconciliation_id, reconciled, added_in_session, reversed, seq`

func scanPosting(row pgx.Row) (finance.Posting, error) {
	var p finance.Posting
	var seq int64
	if err := row.Scan(&p.ID, &p.OrgID, &p.AccountID, &p.Side, &p.Kind, &p.Amount, &p.Date, &p.Memo,
		&p.CategoryID, &p.LiabilityID, &p.ReconciliationID, &p.Reconciled, &p.AddedInSession, &p.Reversed, &seq); err != nil {
		return finance.Posting{}, err
	}
	return p, nil
}

func (s *Store) CreatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error) {
	// seq is a bigserial: commit order, independent of the business date.
	_, err := s.pool.Exec(ctx, `
        insert into postings (id, org_id, account_id, side, kind, amount_minor, date, memo, category_id,
            liability_id, reconciliation_id, reconciled, added_in_session, reversed)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    `, p.ID, p.OrgID, p.AccountID, p.Side, p.Kind, p.Amount, p.Date, p.Memo, p.CategoryID,
		p.LiabilityID, p.ReconciliationID, p.Reconciled, p.AddedInSession, p.Reversed)
	if err != nil {
		return finance.Posting{}, err
	}
	return p, nil
}

func (s *Store) GetPosting(ctx context.Context, orgID, postingID uuid.UUID) (finance.Posting, error) {
	p, err := scanPosting(s.pool.QueryRow(ctx, `
        select `+postingCols+` from postings where id = $1 and org_id = $2
    `, postingID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Posting{}, errs.ErrNotFound
	}
	return p, err
}

// ListPostings returns the org's postings in commit order. Filters are applied
// on the scan side to keep the SQL to one shape.
func (s *Store) ListPostings(ctx context.Context, orgID uuid.UUID, f finance.PostingFilter) ([]finance.Posting, error) {
	rows, err := s.pool.Query(ctx, `
        select `+postingCols+` from postings where org_id = $1 order by seq asc
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]finance.Posting, 0)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

func (s *Store) ListPostingsByAccount(ctx context.Context, orgID, accountID uuid.UUID) ([]finance.Posting, error) {
	return s.ListPostings(ctx, orgID, finance.PostingFilter{AccountID: &accountID})
}

func (s *Store) ListPostingsByLiability(ctx context.Context, orgID, liabilityID uuid.UUID) ([]finance.Posting, error) {
	return s.ListPostings(ctx, orgID, finance.PostingFilter{LiabilityID: &liabilityID})
}

func (s *Store) UpdatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error) {
	ct, err := s.pool.Exec(ctx, `
        update postings
        set memo=$1, category_id=$2, liability_id=$3, reconciliation_id=$4, reconciled=$5, reversed=$6
        where id=$7 and org_id=$8
    `, p.Memo, p.CategoryID, p.LiabilityID, p.ReconciliationID, p.Reconciled, p.Reversed, p.ID, p.OrgID)
	if err != nil {
		return finance.Posting{}, err
	}
	if ct.RowsAffected() == 0 {
		return finance.Posting{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *Store) DeletePosting(ctx context.Context, orgID, postingID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from postings where id=$1 and org_id=$2`, postingID, orgID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Liabilities ---

const liabilityCols = `id, org_id, creditor, description, original_amount_minor, amount_paid_minor, date, category_id`

func scanLiability(row pgx.Row) (finance.Liability, error) {
	var l finance.Liability
	if err := row.Scan(&l.ID, &l.OrgID, &l.Creditor, &l.Description, &l.OriginalAmountMinor, &l.AmountPaidMinor, &l.Date, &l.CategoryID); err != nil {
		return finance.Liability{}, err
	}
	return l, nil
}

func (s *Store) CreateLiability(ctx context.Context, l finance.Liability) (finance.Liability, error) {
	_, err := s.pool.Exec(ctx, `
        insert into liabilities (id, org_id, creditor, description, original_amount_minor, amount_paid_minor, date, category_id)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
    `, l.ID, l.OrgID, l.Creditor, l.Description, l.OriginalAmountMinor, l.AmountPaidMinor, l.Date, l.CategoryID)
	if err != nil {
		return finance.Liability{}, err
	}
	return l, nil
}

func (s *Store) GetLiability(ctx context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error) {
	l, err := scanLiability(s.pool.QueryRow(ctx, `
        select `+liabilityCols+` from liabilities where id = $1 and org_id = $2
    `, liabilityID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Liability{}, errs.ErrNotFound
	}
	return l, err
}

func (s *Store) ListLiabilities(ctx context.Context, orgID uuid.UUID) ([]finance.Liability, error) {
	rows, err := s.pool.Query(ctx, `
        select `+liabilityCols+` from liabilities where org_id = $1 order by date asc, id asc
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]finance.Liability, 0)
	for rows.Next() {
		l, err := scanLiability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) UpdateLiability(ctx context.Context, l finance.Liability) (finance.Liability, error) {
	ct, err := s.pool.Exec(ctx, `
        update liabilities
        set creditor=$1, description=$2, original_amount_minor=$3, amount_paid_minor=$4, date=$5, category_id=$6
        where id=$7 and org_id=$8
    `, l.Creditor, l.Description, l.OriginalAmountMinor, l.AmountPaidMinor, l.Date, l.CategoryID, l.ID, l.OrgID)
	if err != nil {
		return finance.Liability{}, err
	}
	if ct.RowsAffected() == 0 {
		return finance.Liability{}, errs.ErrNotFound
	}
	return l, nil
}

func (s *Store) DeleteLiability(ctx context.Context, orgID, liabilityID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from liabilities where id=$1 and org_id=$2`, liabilityID, orgID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Reconciliations ---

func idSetToJSON(set map[uuid.UUID]struct{}) []byte {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id.String())
	}
	b, _ := json.Marshal(ids)
	return b
}

func idSetFromJSON(b []byte) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{})
	if len(b) == 0 {
		return out
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return out
	}
	for _, raw := range ids {
		if id, err := uuid.Parse(raw); err == nil {
			out[id] = struct{}{}
		}
	}
	return out
}

const reconciliationCols = `id, org_id, account_id, date, notes, book_balance_minor, bank_balance_minor,
    difference_minor, status, reconciled_ids, added_ids`

func scanReconciliation(row pgx.Row) (finance.Reconciliation, error) {
	var r finance.Reconciliation
	var reconciledB, addedB []byte
	if err := row.Scan(&r.ID, &r.OrgID, &r.AccountID, &r.Date, &r.Notes, &r.BookBalanceMinor,
		&r.BankBalanceMinor, &r.DifferenceMinor, &r.Status, &reconciledB, &addedB); err != nil {
		return finance.Reconciliation{}, err
	}
	r.Reconciled = idSetFromJSON(reconciledB)
	r.Added = idSetFromJSON(addedB)
	return r, nil
}

func (s *Store) CreateReconciliation(ctx context.Context, r finance.Reconciliation) (finance.Reconciliation, error) {
	_, err := s.pool.Exec(ctx, `
        insert into reconciliations (id, org_id, account_id, date, notes, book_balance_minor, bank_balance_minor,
            difference_minor, status, reconciled_ids, added_ids)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `, r.ID, r.OrgID, r.AccountID, r.Date, r.Notes, r.BookBalanceMinor, r.BankBalanceMinor,
		r.DifferenceMinor, r.Status, idSetToJSON(r.Reconciled), idSetToJSON(r.Added))
	if err != nil {
		return finance.Reconciliation{}, err
	}
	return r, nil
}

func (s *Store) GetReconciliation(ctx context.Context, orgID, recID uuid.UUID) (finance.Reconciliation, error) {
	r, err := scanReconciliation(s.pool.QueryRow(ctx, `
        select `+reconciliationCols+` from reconciliations where id = $1 and org_id = $2
    `, recID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Reconciliation{}, errs.ErrNotFound
	}
	return r, err
}

func (s *Store) ListReconciliations(ctx context.Context, orgID uuid.UUID) ([]finance.Reconciliation, error) {
	rows, err := s.pool.Query(ctx, `
        select `+reconciliationCols+` from reconciliations where org_id = $1 order by date desc, id asc
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]finance.Reconciliation, 0)
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateReconciliation(ctx context.Context, r finance.Reconciliation) (finance.Reconciliation, error) {
	ct, err := s.pool.Exec(ctx, `
        update reconciliations
        set notes=$1, book_balance_minor=$2, bank_balance_minor=$3, difference_minor=$4, status=$5,
            reconciled_ids=$6, added_ids=$7
        where id=$8 and org_id=$9
    `, r.Notes, r.BookBalanceMinor, r.BankBalanceMinor, r.DifferenceMinor, r.Status,
		idSetToJSON(r.Reconciled), idSetToJSON(r.Added), r.ID, r.OrgID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	if ct.RowsAffected() == 0 {
		return finance.Reconciliation{}, errs.ErrNotFound
	}
	return r, nil
}

func (s *Store) DeleteReconciliation(ctx context.Context, orgID, recID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from reconciliations where id=$1 and org_id=$2`, recID, orgID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Transfers ---

func (s *Store) CreateTransfer(ctx context.Context, t finance.Transfer) (finance.Transfer, error) {
	_, err := s.pool.Exec(ctx, `
        insert into transfers (id, org_id, from_account_id, to_account_id, amount_minor, date, memo, debit_posting_id, credit_posting_id)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, t.ID, t.OrgID, t.FromAccountID, t.ToAccountID, t.Amount, t.Date, t.Memo, t.DebitPostingID, t.CreditPostingID)
	if err != nil {
		return finance.Transfer{}, err
	}
	return t, nil
}

func (s *Store) GetTransfer(ctx context.Context, orgID, transferID uuid.UUID) (finance.Transfer, error) {
	var t finance.Transfer
	err := s.pool.QueryRow(ctx, `
        select id, org_id, from_account_id, to_account_id, amount_minor, date, memo, debit_posting_id, credit_posting_id
        from transfers where id = $1 and org_id = $2
    `, transferID, orgID).Scan(&t.ID, &t.OrgID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Date, &t.Memo, &t.DebitPostingID, &t.CreditPostingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Transfer{}, errs.ErrNotFound
	}
	if err != nil {
		return finance.Transfer{}, err
	}
	return t, nil
}

func (s *Store) ListTransfers(ctx context.Context, orgID uuid.UUID) ([]finance.Transfer, error) {
	rows, err := s.pool.Query(ctx, `
        select id, org_id, from_account_id, to_account_id, amount_minor, date, memo, debit_posting_id, credit_posting_id
        from transfers where org_id = $1 order by date asc, id asc
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]finance.Transfer, 0)
	for rows.Next() {
		var t finance.Transfer
		if err := rows.Scan(&t.ID, &t.OrgID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Date, &t.Memo, &t.DebitPostingID, &t.CreditPostingID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Categories ---

func (s *Store) CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `
        select exists(select 1 from categories where org_id=$1 and slug=$2 and type=$3)
    `, c.OrgID, c.Slug, c.Type).Scan(&exists); err != nil {
		return finance.Category{}, err
	}
	if exists {
		return finance.Category{}, errs.ErrConflict
	}
	_, err := s.pool.Exec(ctx, `
        insert into categories (id, org_id, name, slug, type, track_members, system)
        values ($1,$2,$3,$4,$5,$6,$7)
    `, c.ID, c.OrgID, c.Name, c.Slug, c.Type, c.TrackMembers, c.System)
	if err != nil {
		return finance.Category{}, err
	}
	return c, nil
}

func (s *Store) GetCategory(ctx context.Context, orgID, categoryID uuid.UUID) (finance.Category, error) {
	var c finance.Category
	err := s.pool.QueryRow(ctx, `
        select id, org_id, name, slug, type, track_members, system
        from categories where id = $1 and org_id = $2
    `, categoryID, orgID).Scan(&c.ID, &c.OrgID, &c.Name, &c.Slug, &c.Type, &c.TrackMembers, &c.System)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Category{}, errs.ErrNotFound
	}
	if err != nil {
		return finance.Category{}, err
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, orgID uuid.UUID) ([]finance.Category, error) {
	rows, err := s.pool.Query(ctx, `
        select id, org_id, name, slug, type, track_members, system
        from categories where org_id = $1 order by type, name
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]finance.Category, 0)
	for rows.Next() {
		var c finance.Category
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Slug, &c.Type, &c.TrackMembers, &c.System); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCategory(ctx context.Context, orgID, categoryID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from categories where id=$1 and org_id=$2`, categoryID, orgID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Idempotency ---

func (s *Store) ResolveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
        select payload from idempotency_keys where org_id = $1 and key = $2
    `, orgID, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *Store) SaveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string, payload []byte) error {
	// First write wins.
	_, err := s.pool.Exec(ctx, `
        insert into idempotency_keys (org_id, key, payload) values ($1,$2,$3)
        on conflict (org_id, key) do nothing
    `, orgID, key, payload)
	return err
}
