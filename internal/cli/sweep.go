package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/idempotency"
	"github.com/evcraddock/house-deals/internal/logging"
	"github.com/evcraddock/house-deals/internal/negotiation"
	"github.com/evcraddock/house-deals/internal/notify"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire lapsed offers and purge old idempotency keys",
		Long: `Closes every active deal whose pending offer is past its validity date,
then deletes idempotency keys older than the configured TTL.

Meant to run from cron, e.g. once a day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context())
		},
	}
}

type sweepResult struct {
	Expired []*deal.Deal `json:"expired"`
	Purged  int64        `json:"purged_keys"`
}

func runSweep(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel, cfg.DevMode)

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(database)

	telegram, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		return err
	}

	engine := negotiation.New(database,
		negotiation.WithLogger(logger),
		negotiation.WithNotifier(notify.Multi{
			notify.LogNotifier{Logger: logger},
			telegram,
			notify.NewEmailNotifier(cfg.SMTP),
		}),
	)

	var res sweepResult
	res.Expired, err = engine.ExpireLapsed(ctx)
	if err != nil {
		return fmt.Errorf("expiring offers: %w", err)
	}

	res.Purged, err = idempotency.NewStore(database).Purge(ctx, time.Now().Add(-cfg.IdempotencyTTL))
	if err != nil {
		return fmt.Errorf("purging idempotency keys: %w", err)
	}

	if isJSON() {
		return printJSON(res)
	}

	for _, d := range res.Expired {
		fmt.Printf("Expired deal %s (property %s)\n", d.ID, d.PropertyID)
	}
	fmt.Printf("Expired: %d deals, purged: %d idempotency keys\n", len(res.Expired), res.Purged)
	return nil
}
