package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tinoosan/fundledger/internal/dictionary"
	"github.com/tinoosan/fundledger/internal/service/account"
)

// devOrgID is stable so a seeded postgres database is found again after a restart.
var devOrgID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://fundledger.dev/orgs/dev"))

const seedActor = "dev-seed"

// seedDev installs the default chart for the dev organization unless it
// already has accounts.
func seedDev(ctx context.Context, accounts account.Service, logger *slog.Logger) error {
	existing, err := accounts.List(ctx, devOrgID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("DEV seed skipped: organization already has accounts", "org_id", devOrgID, "accounts", len(existing))
		return nil
	}
	chart := dictionary.Chart(nil)
	specs := make([]account.CreateInput, 0, len(chart))
	for _, d := range chart {
		specs = append(specs, account.CreateInput{Code: d.Code, Name: d.Name, Type: d.Type, Actor: seedActor})
	}
	created, itemErrs, err := accounts.CreateBatch(ctx, devOrgID, specs)
	if err != nil {
		return err
	}
	if len(itemErrs) > 0 {
		return fmt.Errorf("seed chart: item %d: %w", itemErrs[0].Index, itemErrs[0].Err)
	}
	ids := make(map[string]string, len(created))
	for _, a := range created {
		if dictionary.IsReserved(a.Code) || a.Code == "1000" {
			ids[a.Code+" "+a.Name] = a.ID.String()
		}
	}
	logger.Info("DEV seed complete", "org_id", devOrgID, "accounts", len(created), "ids", ids)
	fmt.Printf("\n=== DEV SEED ===\norg_id: %s\n", devOrgID)
	for _, a := range created {
		fmt.Printf("  %s  %-40s %s\n", a.Code, a.Name, a.ID)
	}
	fmt.Println("================")
	return nil
}
