package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/config"
	"github.com/folahanmi/orgledger/internal/finance"
	httpapi "github.com/folahanmi/orgledger/internal/httpapi/v1"
	"github.com/folahanmi/orgledger/internal/meta"
	"github.com/folahanmi/orgledger/internal/service/orchestrator"
	"github.com/folahanmi/orgledger/internal/storage/memory"
	pgstore "github.com/folahanmi/orgledger/internal/storage/postgres"
	"github.com/folahanmi/orgledger/internal/storage/redisstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("ORGLEDGER_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	var store httpapi.Store
	var closers []func()

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closers = append(closers, pg.Close)
		store = pg
		logger.Info("storage backend: postgres")
	} else {
		mem := memory.New()
		if cfg.DevSeed {
			seedDev(mem, logger)
		}
		store = mem
		logger.Info("storage backend: memory")
	}

	// Idempotency keys live in Redis when configured, otherwise in the entity
	// store itself.
	var idem orchestrator.IdemStore
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		rs, err := redisstore.Open(ctx, addr, cfg.IdemTTL)
		if err != nil {
			logger.Error("failed to connect to redis", "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = rs.Close() })
		idem = rs
		logger.Info("idempotency backend: redis", "addr", addr)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.New(store, idem, logger, httpapi.Options{CORSOrigins: cfg.CORSOrigins}).Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("finance service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	for _, closeFn := range closers {
		closeFn()
	}
}

func buildLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// seedDev loads a small fixture set so local compose runs have data to poke at.
func seedDev(store *memory.Store, logger *slog.Logger) {
	org := finance.Organization{ID: uuid.New(), Name: "Dev Organization", Currency: "NGN"}
	store.SeedOrg(org)

	cash := finance.Account{
		ID: uuid.New(), OrgID: org.ID, Name: "Cash Box", Type: finance.AccountTypeCash,
		Currency: "NGN", OpeningBalanceMinor: 500000, BalanceMinor: 500000, Active: true,
	}
	bank := finance.Account{
		ID: uuid.New(), OrgID: org.ID, Name: "Main Bank", Type: finance.AccountTypeBank,
		Currency: "NGN", OpeningBalanceMinor: 2000000, BalanceMinor: 2000000, Active: true,
		Metadata: meta.New(map[string]string{meta.KeyBankName: "First Bank", meta.KeyAccountNumber: "0123456789"}),
	}
	store.SeedAccount(cash)
	store.SeedAccount(bank)

	for _, c := range []finance.Category{
		{ID: uuid.New(), OrgID: org.ID, Name: "General Income", Slug: "general_income", Type: finance.CategoryTypeIncome, System: true},
		{ID: uuid.New(), OrgID: org.ID, Name: "General Expense", Slug: "general_expense", Type: finance.CategoryTypeExpense, System: true},
		{ID: uuid.New(), OrgID: org.ID, Name: "Transfers", Slug: "transfers", Type: finance.CategoryTypeExpense, System: true},
		{ID: uuid.New(), OrgID: org.ID, Name: "Opening Balance", Slug: "opening_balance", Type: finance.CategoryTypeIncome, System: true},
		{ID: uuid.New(), OrgID: org.ID, Name: "Bank Fees", Slug: "bank_fees", Type: finance.CategoryTypeExpense, System: true},
		{ID: uuid.New(), OrgID: org.ID, Name: "Liabilities", Slug: "liabilities", Type: finance.CategoryTypeLiability, System: true},
	} {
		store.SeedCategory(c)
	}

	logger.Info("dev seed loaded",
		"org_id", org.ID.String(),
		"cash_account_id", cash.ID.String(),
		"bank_account_id", bank.ID.String(),
	)
}
