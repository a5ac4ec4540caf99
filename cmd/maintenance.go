package cmd

import (
	"context"
	"fmt"

	"apocaliptyx/config"
	"apocaliptyx/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RecalculatePools rebuilds the pool snapshot of one scenario, or of every
// active scenario when scenarioArg is empty
func RecalculatePools(ctx context.Context, scenarioArg string) error {
	a, err := newMaintenanceApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.recalculatePools(ctx, scenarioArg)
}

func (a *app) recalculatePools(ctx context.Context, scenarioArg string) error {
	if scenarioArg == "" {
		recalculated, failed, err := a.scenarios.RecalculateAllActive(ctx, observability.RecalcTriggerManual)
		if err != nil {
			return fmt.Errorf("failed to recalculate pools: %w", err)
		}
		log.WithFields(log.Fields{
			"recalculated": recalculated,
			"failed":       failed,
		}).Info("Pool recalculation finished")
		if failed > 0 {
			return fmt.Errorf("%d scenarios failed to recalculate", failed)
		}
		return nil
	}

	scenarioID, err := uuid.Parse(scenarioArg)
	if err != nil {
		return fmt.Errorf("invalid scenario id %q: %w", scenarioArg, err)
	}
	pools, err := a.scenarios.RecalculatePools(ctx, scenarioID, observability.RecalcTriggerManual)
	if err != nil {
		return fmt.Errorf("failed to recalculate pools: %w", err)
	}
	log.WithFields(log.Fields{
		"scenarioID": scenarioID,
		"yesPool":    pools.YesPool,
		"noPool":     pools.NoPool,
		"totalPool":  pools.TotalPool,
	}).Info("Pools recalculated")
	return nil
}

// Reconcile compares a user's balance against the sum of their ledger and
// fails when they disagree
func Reconcile(ctx context.Context, userArg string) error {
	if _, err := uuid.Parse(userArg); err != nil {
		return fmt.Errorf("invalid user id %q: %w", userArg, err)
	}

	a, err := newMaintenanceApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.reconcile(ctx, userArg)
}

func (a *app) reconcile(ctx context.Context, userArg string) error {
	userID, err := uuid.Parse(userArg)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userArg, err)
	}

	report, err := a.wallet.Reconcile(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to reconcile: %w", err)
	}
	log.WithFields(log.Fields{
		"userID":    report.UserID,
		"balance":   report.Balance,
		"ledgerSum": report.LedgerSum,
		"drift":     report.Drift,
	}).Info("Reconciliation finished")
	if !report.Consistent {
		return fmt.Errorf("balance drift of %d coins for user %s", report.Drift, userID)
	}
	return nil
}

// newMaintenanceApp wires the services against the configured database
// without event publishing. The memory store would always be empty, so a
// database is required.
func newMaintenanceApp(ctx context.Context) (*app, error) {
	cfg := config.Get()
	configureLogging(cfg)

	if cfg.UseMemoryStore() {
		return nil, fmt.Errorf("DATABASE_URL is required for maintenance commands")
	}
	return newApp(ctx, cfg, appOptions{offline: true})
}
