package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-deals/internal/client"
	"github.com/evcraddock/house-deals/internal/money"
)

func newPropertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "property",
		Aliases: []string{"properties", "p"},
		Short:   "List and inspect properties",
	}
	cmd.AddCommand(newPropertyAddCmd(), newPropertyListCmd(), newPropertyShowCmd(),
		newPropertyFavCmd(), newPropertyUnfavCmd(), newPropertyFavsCmd())
	return cmd
}

func newPropertyAddCmd() *cobra.Command {
	var (
		address  string
		price    int64
		currency string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "List a property you own",
		Long: `List a property for sale. You become its owner (the seller in any deal).

Examples:
  hd property add "Apartamento El Poblado" --address "Cra 43A #1-50" --price 320000000 --currency COP`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.AddPropertyRequest{
				Title:    strings.Join(args, " "),
				Address:  address,
				Currency: money.Currency(strings.ToUpper(currency)),
			}
			if cmd.Flags().Changed("price") {
				req.Price = &price
			}

			p, err := newAPIClient().AddProperty(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("adding property: %w", err)
			}
			if isJSON() {
				return printJSON(p)
			}
			fmt.Println("Property added.")
			printPropertySummary(p)
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "street address")
	cmd.Flags().Int64Var(&price, "price", 0, "asking price in whole currency units")
	cmd.Flags().StringVar(&currency, "currency", string(money.COP), "currency of the asking price")

	return cmd
}

func newPropertyListCmd() *cobra.Command {
	var mine bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := newAPIClient().ListProperties(cmd.Context(), mine)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(props)
			}
			return printPropertyTable(props)
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "only properties you own")

	return cmd
}

func newPropertyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <property-id>",
		Short: "Show a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newAPIClient().GetProperty(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(p)
			}
			printPropertySummary(p)
			return nil
		},
	}
}

func newPropertyFavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fav <property-id>",
		Short: "Save a property to your favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newAPIClient().AddFavorite(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("saving favorite: %w", err)
			}
			if isJSON() {
				return printJSON(f)
			}
			fmt.Printf("Saved %s (%s) to favorites.\n", f.Title, f.PropertyID)
			return nil
		},
	}
}

func newPropertyUnfavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfav <property-id>",
		Short: "Remove a property from your favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().RemoveFavorite(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing favorite: %w", err)
			}
			fmt.Printf("Removed %s from favorites.\n", args[0])
			return nil
		},
	}
}

func newPropertyFavsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favs",
		Short: "List your favorite properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			favs, err := newAPIClient().ListFavorites(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(favs)
			}
			return printFavoriteTable(favs)
		},
	}
}
