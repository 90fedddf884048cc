package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-deals/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Long: `Sign a bearer token for a user with the server's JWT secret.

Examples:
  hd token buyer-42
  hd token seller-7 --ttl 720h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(args[0], ttl)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: from config, 24h)")

	return cmd
}

func runToken(userID string, ttl time.Duration) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = cfg.Auth.TokenTTL
	}

	token, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(userID, ttl)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(map[string]string{"user_id": userID, "token": token})
	}
	fmt.Println(token)
	return nil
}
