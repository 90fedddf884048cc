package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-deals/internal/auth"
	"github.com/evcraddock/house-deals/internal/logging"
	"github.com/evcraddock/house-deals/internal/negotiation"
	"github.com/evcraddock/house-deals/internal/notify"
	"github.com/evcraddock/house-deals/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP API server for properties, visits, offers and deals.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: from config, 8080)")

	return cmd
}

func runServe(ctx context.Context, port int) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
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
	mailer := notify.NewEmailNotifier(cfg.SMTP)
	notifiers := notify.Multi{notify.LogNotifier{Logger: logger}}
	if telegram.Enabled() {
		notifiers = append(notifiers, telegram)
	}
	if mailer.Enabled() {
		notifiers = append(notifiers, mailer)
	}

	engine := negotiation.New(database,
		negotiation.WithLogger(logger),
		negotiation.WithNotifier(notifiers),
	)
	srv := web.NewServer(database, engine, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", "port", cfg.Port, "db", cfg.DatabasePath, "dev_mode", cfg.DevMode,
		"telegram", telegram.Enabled(), "email", mailer.Enabled())
	if err := srv.ListenAndServe(ctx, cfg.Port); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
