// Package orchestrator sequences the multi-step write recipes of the finance
// core. The entity store is transactional per row only, so each recipe runs as
// an ordered list of steps with per-step compensation: on failure the committed
// steps are rolled back in reverse order, and a rollback failure is surfaced as
// a PartialCommitError naming exactly which steps remain committed.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/service/balance"
	"github.com/folahanmi/orgledger/internal/service/liability"
)

// Store is the entity-store surface the recipes write through.
type Store interface {
	GetAccount(ctx context.Context, orgID, accountID uuid.UUID) (finance.Account, error)
	CreateAccount(ctx context.Context, a finance.Account) (finance.Account, error)
	DeleteAccount(ctx context.Context, orgID, accountID uuid.UUID) error
	GetPosting(ctx context.Context, orgID, postingID uuid.UUID) (finance.Posting, error)
	CreatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error)
	UpdatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error)
	DeletePosting(ctx context.Context, orgID, postingID uuid.UUID) error
	GetLiability(ctx context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error)
	DeleteLiability(ctx context.Context, orgID, liabilityID uuid.UUID) error
	CreateTransfer(ctx context.Context, t finance.Transfer) (finance.Transfer, error)
}

// IdemStore persists recipe results keyed by a caller-supplied idempotency key
// so retries replay the stored outcome instead of re-running the writes.
type IdemStore interface {
	ResolveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) ([]byte, bool, error)
	SaveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string, payload []byte) error
}

// Service executes the named recipes.
type Service struct {
	store  Store
	idem   IdemStore
	ledger balance.Service
	liab   liability.Service
	log    *slog.Logger
}

func New(store Store, idem IdemStore, ledger balance.Service, liab liability.Service, logger *slog.Logger) *Service {
	return &Service{store: store, idem: idem, ledger: ledger, liab: liab, log: logger}
}

// PartialCommitError reports a recipe that failed mid-sequence and could not be
// fully rolled back. Committed lists the steps whose effects remain in place so
// an operator can repair manually.
type PartialCommitError struct {
	Recipe      string
	FailedStep  string
	Committed   []string
	Cause       error
	RollbackErr error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("%s: step %q failed (%v); rollback failed (%v); still committed: %s",
		e.Recipe, e.FailedStep, e.Cause, e.RollbackErr, strings.Join(e.Committed, ", "))
}

func (e *PartialCommitError) Is(target error) bool { return target == errs.ErrPartialCommit }

func (e *PartialCommitError) Unwrap() error { return e.Cause }

// step is one unit of a recipe. undo restores the state from before run; steps
// without side effects to revert leave undo nil.
type step struct {
	name string
	run  func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// runSteps executes steps in order. On failure it compensates committed steps
// LIFO; if compensation itself fails the error escalates to PartialCommitError.
func (s *Service) runSteps(ctx context.Context, recipe string, steps []step) error {
	committed := make([]step, 0, len(steps))
	for _, st := range steps {
		if err := st.run(ctx); err != nil {
			names := make([]string, 0, len(committed))
			for _, c := range committed {
				names = append(names, c.name)
			}
			for i := len(committed) - 1; i >= 0; i-- {
				c := committed[i]
				if c.undo == nil {
					continue
				}
				if uerr := c.undo(ctx); uerr != nil {
					s.log.Error("recipe rollback failed",
						"recipe", recipe, "failed_step", st.name, "rollback_step", c.name,
						"err", err, "rollback_err", uerr)
					return &PartialCommitError{
						Recipe:      recipe,
						FailedStep:  st.name,
						Committed:   names[:i+1],
						Cause:       err,
						RollbackErr: uerr,
					}
				}
			}
			s.log.Warn("recipe rolled back", "recipe", recipe, "failed_step", st.name, "err", err)
			return fmt.Errorf("%s: step %q: %w", recipe, st.name, err)
		}
		committed = append(committed, st)
	}
	return nil
}

// runIdempotent wraps a recipe body with key-based replay. A blank key runs the
// body unconditionally. First write wins; a retry with the same key returns the
// stored result without re-running the sequence.
func runIdempotent[T any](ctx context.Context, s *Service, orgID uuid.UUID, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if key != "" {
		payload, found, err := s.idem.ResolveIdempotencyKey(ctx, orgID, key)
		if err != nil {
			return zero, err
		}
		if found {
			var out T
			if err := json.Unmarshal(payload, &out); err != nil {
				return zero, fmt.Errorf("stored idempotent result is unreadable: %w", err)
			}
			s.log.Info("recipe replayed from idempotency key", "org_id", orgID.String(), "key", key)
			return out, nil
		}
	}
	out, err := fn(ctx)
	if err != nil {
		return zero, err
	}
	if key != "" {
		payload, merr := json.Marshal(out)
		if merr == nil {
			if serr := s.idem.SaveIdempotencyKey(ctx, orgID, key, payload); serr != nil {
				// The writes succeeded; a lost key only costs replay protection.
				s.log.Warn("failed to save idempotency key", "key", key, "err", serr)
			}
		}
	}
	return out, nil
}
