package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deal",
		Aliases: []string{"deals", "d"},
		Short:   "Inspect and cancel deals",
	}
	cmd.AddCommand(newDealListCmd(), newDealShowCmd(), newDealCancelCmd())
	return cmd
}

func newDealListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List deals you are a party to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deals, err := newAPIClient().ListDeals(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(deals)
			}
			return printDealTable(deals)
		},
	}
}

func newDealShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deal-id>",
		Short: "Show a deal with its offer chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().GetDeal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(v)
			}
			printDealView(v)
			return nil
		},
	}
}

func newDealCancelCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "cancel <deal-id>",
		Short: "Cancel an active deal with no pending offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newAPIClient().CancelDeal(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(res)
			}
			fmt.Printf("Deal %s cancelled.\n", res.Deal.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "idempotency key; retries with the same key are safe")

	return cmd
}
