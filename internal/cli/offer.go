package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-deals/internal/money"
	"github.com/evcraddock/house-deals/internal/negotiation"
	"github.com/evcraddock/house-deals/internal/offer"
)

func newOfferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "offer",
		Aliases: []string{"offers", "o"},
		Short:   "Make and answer offers",
		Long: `Make and answer offers.

A buyer submits a first offer on a property they have visited. Each side then
counters the other's pending offer until one of them accepts, rejects or
withdraws.`,
	}
	cmd.AddCommand(
		newOfferSubmitCmd(),
		newOfferCounterCmd(),
		newOfferRespondCmd(negotiation.Accept, "Accept a pending offer (closes the deal)"),
		newOfferRespondCmd(negotiation.Reject, "Reject a pending offer"),
		newOfferRespondCmd(negotiation.Withdraw, "Withdraw your own pending offer"),
		newOfferShowCmd(),
	)
	return cmd
}

// termsFlags collects offer terms from command flags.
type termsFlags struct {
	amount           int64
	currency         string
	installments     []string
	validUntil       string
	conditions       string
	deedsDate        string
	registrationFees string
	deliveryDate     string
	promesa          bool
	optionContract   bool
}

func (f *termsFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.amount, "amount", 0, "total amount in whole currency units (required)")
	cmd.Flags().StringVar(&f.currency, "currency", string(money.COP), "currency of the offer")
	cmd.Flags().StringArrayVar(&f.installments, "installment", nil,
		"installment as DATE:AMOUNT:METHOD[:CURRENCY], repeatable (default: full payment)")
	cmd.Flags().StringVar(&f.validUntil, "valid-until", "", "last day the offer can be accepted (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.conditions, "conditions", "", "other conditions")
	cmd.Flags().StringVar(&f.deedsDate, "deeds-date", "", "deeds signing date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.registrationFees, "registration-fees", "", "who pays registration fees")
	cmd.Flags().StringVar(&f.deliveryDate, "delivery-date", "", "physical delivery date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.promesa, "promesa", false, "request a promesa de compraventa")
	cmd.Flags().BoolVar(&f.optionContract, "option-contract", false, "request an option contract")
	_ = cmd.MarkFlagRequired("amount")
}

func (f *termsFlags) payload() (offer.Payload, error) {
	currency := money.Currency(strings.ToUpper(f.currency))
	terms := offer.Payload{
		TotalAmount:                 f.amount,
		Currency:                    currency,
		Payment:                     offer.FullPayment{},
		ValidUntil:                  f.validUntil,
		OtherConditions:             f.conditions,
		DeedsSigningDate:            f.deedsDate,
		RegistrationFeesArrangement: f.registrationFees,
		PhysicalDeliveryDate:        f.deliveryDate,
		RequestPromesa:              f.promesa,
		RequestOptionContract:       f.optionContract,
	}

	if len(f.installments) > 0 {
		list := make(offer.Installments, 0, len(f.installments))
		for _, s := range f.installments {
			in, err := parseInstallment(s, currency)
			if err != nil {
				return offer.Payload{}, err
			}
			list = append(list, in)
		}
		terms.Payment = list
	}

	return terms, terms.Validate()
}

// parseInstallment parses DATE:AMOUNT:METHOD[:CURRENCY].
func parseInstallment(s string, fallback money.Currency) (offer.Installment, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return offer.Installment{}, fmt.Errorf("invalid installment %q (want DATE:AMOUNT:METHOD[:CURRENCY])", s)
	}

	amount, err := strconv.ParseInt(strings.ReplaceAll(parts[1], ",", ""), 10, 64)
	if err != nil {
		return offer.Installment{}, fmt.Errorf("invalid installment amount %q", parts[1])
	}

	in := offer.Installment{
		Date:          parts[0],
		Amount:        amount,
		Currency:      fallback,
		PaymentMethod: offer.PaymentMethod(strings.ToLower(parts[2])),
	}
	if len(parts) == 4 {
		in.Currency = money.Currency(strings.ToUpper(parts[3]))
	}
	return in, nil
}

func newOfferSubmitCmd() *cobra.Command {
	var (
		terms termsFlags
		key   string
	)

	cmd := &cobra.Command{
		Use:   "submit <property-id>",
		Short: "Make a first offer on a property",
		Long: `Make a first offer on a property. You must have completed a visit to it.

Examples:
  hd offer submit 0b6f... --amount 300000000 --valid-until 2026-03-01
  hd offer submit 0b6f... --amount 300000000 \
      --installment 2026-03-01:100000000:wire --installment 2026-06-01:200000000:wire`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := terms.payload()
			if err != nil {
				return err
			}
			res, err := newAPIClient().SubmitOffer(cmd.Context(), args[0], p, key)
			if err != nil {
				return err
			}
			return printResult("Offer submitted", res)
		},
	}

	terms.bind(cmd)
	cmd.Flags().StringVar(&key, "key", "", "idempotency key; retries with the same key are safe")

	return cmd
}

func newOfferCounterCmd() *cobra.Command {
	var (
		terms termsFlags
		key   string
	)

	cmd := &cobra.Command{
		Use:   "counter <offer-id>",
		Short: "Counter the other side's pending offer",
		Long: `Counter the other side's pending offer with new terms. The countered
offer is closed and yours becomes the pending one.

Examples:
  hd offer counter 7d1c... --amount 310000000 --valid-until 2026-03-05`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := terms.payload()
			if err != nil {
				return err
			}
			res, err := newAPIClient().CounterOffer(cmd.Context(), args[0], p, key)
			if err != nil {
				return err
			}
			return printResult("Counter-offer sent", res)
		},
	}

	terms.bind(cmd)
	cmd.Flags().StringVar(&key, "key", "", "idempotency key; retries with the same key are safe")

	return cmd
}

func newOfferRespondCmd(action negotiation.Action, short string) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   string(action) + " <offer-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := respond(cmd.Context(), action, args[0], key)
			if err != nil {
				return err
			}
			return printResult(respondMessages[action], res)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "idempotency key; retries with the same key are safe")

	return cmd
}

var respondMessages = map[negotiation.Action]string{
	negotiation.Accept:   "Offer accepted",
	negotiation.Reject:   "Offer rejected",
	negotiation.Withdraw: "Offer withdrawn",
}

func respond(ctx context.Context, action negotiation.Action, offerID, key string) (*negotiation.Result, error) {
	c := newAPIClient()
	switch action {
	case negotiation.Accept:
		return c.AcceptOffer(ctx, offerID, key)
	case negotiation.Reject:
		return c.RejectOffer(ctx, offerID, key)
	case negotiation.Withdraw:
		return c.WithdrawOffer(ctx, offerID, key)
	default:
		return nil, fmt.Errorf("unsupported action %q", action)
	}
}

func newOfferShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <offer-id>",
		Short: "Show an offer and what changed from its parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().GetOffer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(v)
			}
			printOfferView(v)
			return nil
		},
	}
}
