package memory

// Package memory provides a simple in-memory implementation of the entity store
// used for development and tests. It keeps code paths easy to follow while
// allowing a real DB to be plugged in later.
import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
)

// Store is an in-memory implementation of the repository+writer interfaces used
// across the services. It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu       sync.RWMutex
	orgs     map[uuid.UUID]finance.Organization
	accounts map[uuid.UUID]finance.Account
	postings map[uuid.UUID]finance.Posting
	// Per-org posting IDs in commit order. Date is business data, not an
	// ordering key; readers that need date order sort on their side.
	postingOrder    map[uuid.UUID][]uuid.UUID
	liabilities     map[uuid.UUID]finance.Liability
	reconciliations map[uuid.UUID]finance.Reconciliation
	transfers       map[uuid.UUID]finance.Transfer
	categories      map[uuid.UUID]finance.Category
	// Idempotency: orgID -> key -> stored recipe result
	idem map[uuid.UUID]map[string][]byte
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		orgs:            make(map[uuid.UUID]finance.Organization),
		accounts:        make(map[uuid.UUID]finance.Account),
		postings:        make(map[uuid.UUID]finance.Posting),
		postingOrder:    make(map[uuid.UUID][]uuid.UUID),
		liabilities:     make(map[uuid.UUID]finance.Liability),
		reconciliations: make(map[uuid.UUID]finance.Reconciliation),
		transfers:       make(map[uuid.UUID]finance.Transfer),
		categories:      make(map[uuid.UUID]finance.Category),
		idem:            make(map[uuid.UUID]map[string][]byte),
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedOrg(o finance.Organization) {
	s.mu.Lock()
	s.orgs[o.ID] = o
	s.mu.Unlock()
}

func (s *Store) SeedAccount(a finance.Account) {
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.mu.Unlock()
}

func (s *Store) SeedCategory(c finance.Category) {
	s.mu.Lock()
	s.categories[c.ID] = c
	s.mu.Unlock()
}

// --- Organizations ---

func (s *Store) GetOrganization(_ context.Context, orgID uuid.UUID) (finance.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return finance.Organization{}, errs.ErrNotFound
	}
	return o, nil
}

// --- Accounts ---

func (s *Store) CreateAccount(_ context.Context, a finance.Account) (finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return finance.Account{}, errs.ErrConflict
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) GetAccount(_ context.Context, orgID, accountID uuid.UUID) (finance.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok || a.OrgID != orgID {
		return finance.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context, orgID uuid.UUID) ([]finance.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]finance.Account, 0)
	for _, a := range s.accounts {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpdateAccount persists descriptive fields and the active flag. BalanceMinor
// is ignored here; balance moves only through AdjustAccountBalance and
// SetAccountBalance.
func (s *Store) UpdateAccount(_ context.Context, a finance.Account) (finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.accounts[a.ID]
	if !ok || cur.OrgID != a.OrgID {
		return finance.Account{}, errs.ErrNotFound
	}
	cur.Name = a.Name
	cur.Metadata = a.Metadata.Clone()
	cur.Active = a.Active
	s.accounts[a.ID] = cur
	return cur, nil
}

// AdjustAccountBalance applies a signed delta atomically. A delta that would
// drive the balance negative fails with ErrInsufficientFunds and applies
// nothing; this is the commit-time re-check behind the balance service.
func (s *Store) AdjustAccountBalance(_ context.Context, orgID, accountID uuid.UUID, deltaMinor int64) (finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok || a.OrgID != orgID {
		return finance.Account{}, errs.ErrNotFound
	}
	next := a.BalanceMinor + deltaMinor
	if next < 0 {
		return finance.Account{}, errs.ErrInsufficientFunds
	}
	a.BalanceMinor = next
	s.accounts[accountID] = a
	return a, nil
}

// SetAccountBalance overwrites the running balance. Reserved for the
// recalculation self-heal path.
func (s *Store) SetAccountBalance(_ context.Context, orgID, accountID uuid.UUID, balanceMinor int64) (finance.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok || a.OrgID != orgID {
		return finance.Account{}, errs.ErrNotFound
	}
	a.BalanceMinor = balanceMinor
	s.accounts[accountID] = a
	return a, nil
}

// DeleteAccount removes an account row. Used only as orchestrator compensation
// for a just-created account.
func (s *Store) DeleteAccount(_ context.Context, orgID, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok || a.OrgID != orgID {
		return errs.ErrNotFound
	}
	delete(s.accounts, accountID)
	return nil
}

// --- Postings ---

func (s *Store) CreatePosting(_ context.Context, p finance.Posting) (finance.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.postings[p.ID]; ok {
		return finance.Posting{}, errs.ErrConflict
	}
	s.postings[p.ID] = p
	s.postingOrder[p.OrgID] = append(s.postingOrder[p.OrgID], p.ID)
	return p, nil
}

func (s *Store) GetPosting(_ context.Context, orgID, postingID uuid.UUID) (finance.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.postings[postingID]
	if !ok || p.OrgID != orgID {
		return finance.Posting{}, errs.ErrNotFound
	}
	return p, nil
}

// ListPostings returns the org's postings in commit order, optionally filtered.
func (s *Store) ListPostings(_ context.Context, orgID uuid.UUID, f finance.PostingFilter) ([]finance.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]finance.Posting, 0)
	for _, id := range s.postingOrder[orgID] {
		p, ok := s.postings[id]
		if !ok || p.OrgID != orgID {
			continue
		}
		if !f.Match(p) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ListPostingsByAccount(ctx context.Context, orgID, accountID uuid.UUID) ([]finance.Posting, error) {
	return s.ListPostings(ctx, orgID, finance.PostingFilter{AccountID: &accountID})
}

func (s *Store) ListPostingsByLiability(ctx context.Context, orgID, liabilityID uuid.UUID) ([]finance.Posting, error) {
	return s.ListPostings(ctx, orgID, finance.PostingFilter{LiabilityID: &liabilityID})
}

func (s *Store) UpdatePosting(_ context.Context, p finance.Posting) (finance.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.postings[p.ID]
	if !ok || cur.OrgID != p.OrgID {
		return finance.Posting{}, errs.ErrNotFound
	}
	s.postings[p.ID] = p
	return p, nil
}

// DeletePosting removes a posting row. Used only as orchestrator compensation
// for a just-created posting; committed postings are reversed, not deleted.
func (s *Store) DeletePosting(_ context.Context, orgID, postingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postings[postingID]
	if !ok || p.OrgID != orgID {
		return errs.ErrNotFound
	}
	delete(s.postings, postingID)
	order := s.postingOrder[orgID]
	for i, id := range order {
		if id == postingID {
			s.postingOrder[orgID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

// --- Liabilities ---

func (s *Store) CreateLiability(_ context.Context, l finance.Liability) (finance.Liability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liabilities[l.ID]; ok {
		return finance.Liability{}, errs.ErrConflict
	}
	s.liabilities[l.ID] = l
	return l, nil
}

func (s *Store) GetLiability(_ context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.liabilities[liabilityID]
	if !ok || l.OrgID != orgID {
		return finance.Liability{}, errs.ErrNotFound
	}
	return l, nil
}

func (s *Store) ListLiabilities(_ context.Context, orgID uuid.UUID) ([]finance.Liability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]finance.Liability, 0)
	for _, l := range s.liabilities {
		if l.OrgID == orgID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) UpdateLiability(_ context.Context, l finance.Liability) (finance.Liability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.liabilities[l.ID]
	if !ok || cur.OrgID != l.OrgID {
		return finance.Liability{}, errs.ErrNotFound
	}
	s.liabilities[l.ID] = l
	return l, nil
}

// DeleteLiability removes a liability row. Orchestrator compensation only.
func (s *Store) DeleteLiability(_ context.Context, orgID, liabilityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.liabilities[liabilityID]
	if !ok || l.OrgID != orgID {
		return errs.ErrNotFound
	}
	delete(s.liabilities, liabilityID)
	return nil
}

// --- Reconciliations ---

func (s *Store) CreateReconciliation(_ context.Context, r finance.Reconciliation) (finance.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reconciliations[r.ID]; ok {
		return finance.Reconciliation{}, errs.ErrConflict
	}
	s.reconciliations[r.ID] = cloneReconciliation(r)
	return r, nil
}

func (s *Store) GetReconciliation(_ context.Context, orgID, recID uuid.UUID) (finance.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reconciliations[recID]
	if !ok || r.OrgID != orgID {
		return finance.Reconciliation{}, errs.ErrNotFound
	}
	return cloneReconciliation(r), nil
}

func (s *Store) ListReconciliations(_ context.Context, orgID uuid.UUID) ([]finance.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]finance.Reconciliation, 0)
	for _, r := range s.reconciliations {
		if r.OrgID == orgID {
			out = append(out, cloneReconciliation(r))
		}
	}
	return out, nil
}

func (s *Store) UpdateReconciliation(_ context.Context, r finance.Reconciliation) (finance.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reconciliations[r.ID]
	if !ok || cur.OrgID != r.OrgID {
		return finance.Reconciliation{}, errs.ErrNotFound
	}
	s.reconciliations[r.ID] = cloneReconciliation(r)
	return r, nil
}

func (s *Store) DeleteReconciliation(_ context.Context, orgID, recID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reconciliations[recID]
	if !ok || r.OrgID != orgID {
		return errs.ErrNotFound
	}
	delete(s.reconciliations, recID)
	return nil
}

func cloneReconciliation(r finance.Reconciliation) finance.Reconciliation {
	out := r
	out.Reconciled, out.Added = r.CloneSets()
	return out
}

// --- Transfers ---

func (s *Store) CreateTransfer(_ context.Context, t finance.Transfer) (finance.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transfers[t.ID]; ok {
		return finance.Transfer{}, errs.ErrConflict
	}
	s.transfers[t.ID] = t
	return t, nil
}

func (s *Store) GetTransfer(_ context.Context, orgID, transferID uuid.UUID) (finance.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[transferID]
	if !ok || t.OrgID != orgID {
		return finance.Transfer{}, errs.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTransfers(_ context.Context, orgID uuid.UUID) ([]finance.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]finance.Transfer, 0)
	for _, t := range s.transfers {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- Categories ---

func (s *Store) CreateCategory(_ context.Context, c finance.Category) (finance.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.categories {
		if other.OrgID == c.OrgID && other.Slug == c.Slug && other.Type == c.Type {
			return finance.Category{}, errs.ErrConflict
		}
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, orgID, categoryID uuid.UUID) (finance.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[categoryID]
	if !ok || c.OrgID != orgID {
		return finance.Category{}, errs.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, orgID uuid.UUID) ([]finance.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]finance.Category, 0)
	for _, c := range s.categories {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteCategory(_ context.Context, orgID, categoryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.OrgID != orgID {
		return errs.ErrNotFound
	}
	delete(s.categories, categoryID)
	return nil
}

// --- Idempotency ---

// ResolveIdempotencyKey returns the stored result for a recipe key, if any.
func (s *Store) ResolveIdempotencyKey(_ context.Context, orgID uuid.UUID, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.idem[orgID]; ok {
		if payload, ok2 := m[key]; ok2 {
			out := make([]byte, len(payload))
			copy(out, payload)
			return out, true, nil
		}
	}
	return nil, false, nil
}

// SaveIdempotencyKey stores a recipe result under key. First write wins.
func (s *Store) SaveIdempotencyKey(_ context.Context, orgID uuid.UUID, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.idem[orgID]
	if !ok {
		m = make(map[string][]byte)
		s.idem[orgID] = m
	}
	if _, exists := m[key]; !exists {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		m[key] = cp
	}
	return nil
}
