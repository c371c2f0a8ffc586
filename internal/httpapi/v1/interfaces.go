package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/service/balance"
	"github.com/folahanmi/orgledger/internal/service/category"
	"github.com/folahanmi/orgledger/internal/service/liability"
	"github.com/folahanmi/orgledger/internal/service/orchestrator"
	"github.com/folahanmi/orgledger/internal/service/reconcile"
)

// Store is the full entity-store surface the HTTP layer wires into the
// services. Both the in-memory store and the postgres store satisfy it.
// Overlapping methods across the embedded interfaces share one signature.
type Store interface {
	balance.Repo
	balance.Writer
	liability.Repo
	liability.Writer
	reconcile.Repo
	reconcile.Writer
	category.Repo
	category.Writer
	orchestrator.Store
	orchestrator.IdemStore

	GetOrganization(ctx context.Context, orgID uuid.UUID) (finance.Organization, error)
	ListAccounts(ctx context.Context, orgID uuid.UUID) ([]finance.Account, error)
	UpdateAccount(ctx context.Context, a finance.Account) (finance.Account, error)
	ListPostings(ctx context.Context, orgID uuid.UUID, f finance.PostingFilter) ([]finance.Posting, error)
	GetTransfer(ctx context.Context, orgID, transferID uuid.UUID) (finance.Transfer, error)
	ListTransfers(ctx context.Context, orgID uuid.UUID) ([]finance.Transfer, error)
}
