package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/favorite"
	"github.com/evcraddock/house-deals/internal/money"
	"github.com/evcraddock/house-deals/internal/negotiation"
	"github.com/evcraddock/house-deals/internal/offer"
	"github.com/evcraddock/house-deals/internal/property"
	"github.com/evcraddock/house-deals/internal/visit"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPropertySummary prints a single property summary in text format.
func printPropertySummary(p *property.Property) {
	fmt.Printf("Property %s\n", p.ID)
	fmt.Printf("  Title:    %s\n", p.Title)
	if p.Address != "" {
		fmt.Printf("  Address:  %s\n", p.Address)
	}
	if p.Price != nil {
		fmt.Printf("  Price:    %s\n", money.Format(*p.Price, p.Currency))
	}
	fmt.Printf("  Owner:    %s\n", p.OwnerID)
}

// printPropertyTable prints a list of properties as a formatted table.
func printPropertyTable(props []*property.Property) error {
	if len(props) == 0 {
		fmt.Println("No properties found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tTITLE\tADDRESS\tPRICE\tOWNER"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t-----\t-------\t-----\t-----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, p := range props {
		price := "-"
		if p.Price != nil {
			price = money.Format(*p.Price, p.Currency)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, truncate(p.Title, 30), truncate(p.Address, 30), price, p.OwnerID); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d properties\n", len(props))
	return nil
}

// printFavoriteTable prints saved listings as a formatted table.
func printFavoriteTable(favs []*favorite.Favorite) error {
	if len(favs) == 0 {
		fmt.Println("No favorites yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tTITLE\tPRICE\tSAVED"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, f := range favs {
		price := "-"
		if f.Price != nil {
			price = money.Format(*f.Price, f.Currency)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			f.PropertyID, truncate(f.Title, 30), price, f.CreatedAt.Format("2006-01-02")); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

// printVisits prints visits in text format.
func printVisits(visits []*visit.Visit) {
	if len(visits) == 0 {
		fmt.Println("No visits recorded.")
		return
	}

	for _, v := range visits {
		fmt.Printf("[%s] %s property %s (%s)\n", v.VisitDate, v.Status.Label(), v.PropertyID, v.ID)
		if v.Notes != "" {
			fmt.Printf("  %s\n", v.Notes)
		}
		fmt.Println()
	}
}

// printResult prints the outcome of a negotiation action.
func printResult(msg string, res *negotiation.Result) error {
	if isJSON() {
		return printJSON(res)
	}

	fmt.Printf("%s.\n", msg)
	if res.Offer != nil {
		printOffer(res.Offer, "  ")
	}
	if res.Deal != nil {
		fmt.Printf("  Deal:     %s (%s)\n", res.Deal.ID, res.Deal.Status)
		if res.Deal.FinalPrice != nil && res.Offer != nil {
			fmt.Printf("  Final:    %s\n", money.Format(*res.Deal.FinalPrice, res.Offer.Terms.Currency))
		}
	}
	return nil
}

// printOffer prints an offer's terms, each line prefixed with indent.
func printOffer(o *offer.Offer, indent string) {
	t := o.Terms
	fmt.Printf("%sOffer %s v%d [%s] by %s\n", indent, o.ID, o.Version, o.Status.Label(), o.UserID)
	fmt.Printf("%s  Amount:   %s\n", indent, money.Format(t.TotalAmount, t.Currency))
	switch p := t.Payment.(type) {
	case offer.Installments:
		fmt.Printf("%s  Payment:  %d installments\n", indent, len(p))
		for _, in := range p {
			fmt.Printf("%s    %s  %s  %s\n", indent, in.Date, money.Format(in.Amount, in.Currency), in.PaymentMethod)
		}
	default:
		fmt.Printf("%s  Payment:  full\n", indent)
	}
	if t.ValidUntil != "" {
		fmt.Printf("%s  Valid:    until %s\n", indent, t.ValidUntil)
	}
	if t.OtherConditions != "" {
		fmt.Printf("%s  Terms:    %s\n", indent, t.OtherConditions)
	}
}

// printOfferView prints an offer with its parent and changed fields.
func printOfferView(v *negotiation.OfferView) {
	printOffer(v.Offer, "")
	if v.Parent == nil {
		return
	}
	fmt.Printf("  Counters: v%d by %s (%s)\n", v.Parent.Version, v.Parent.UserID,
		money.Format(v.Parent.TotalAmount, v.Parent.Currency))
	for _, c := range v.Changes {
		fmt.Printf("    %s: %s -> %s\n", c.Field, c.From, c.To)
	}
}

// printDealView prints a deal and its current chain.
func printDealView(v *negotiation.DealView) {
	d := v.Deal
	fmt.Printf("Deal %s [%s]\n", d.ID, d.Status)
	fmt.Printf("  Property: %s\n", d.PropertyID)
	fmt.Printf("  Buyer:    %s\n", d.BuyerID)
	fmt.Printf("  Seller:   %s\n", d.SellerID)
	if d.FinalPrice != nil && len(v.Chain) > 0 {
		fmt.Printf("  Final:    %s\n", money.Format(*d.FinalPrice, v.Chain[0].Terms.Currency))
	}

	if len(v.Chain) == 0 {
		fmt.Println("\nNo offers yet.")
		return
	}

	fmt.Println("\nNegotiation (newest first):")
	for _, o := range v.Chain {
		fmt.Println()
		printOfferView(o)
	}
	if extra := len(v.Offers) - len(v.Chain); extra > 0 {
		fmt.Printf("\n%d earlier offers in closed chains.\n", extra)
	}
}

// printDealTable prints deal summaries as a table.
func printDealTable(deals []*deal.Summary) error {
	if len(deals) == 0 {
		fmt.Println("No deals found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tPROPERTY\tROLE\tSTATUS\tOFFERS\tPENDING"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t--------\t----\t------\t------\t-------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, d := range deals {
		title := d.PropertyTitle
		if title == "" {
			title = d.PropertyID
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			d.ID, truncate(title, 30), d.Role, d.Status, d.OfferCount, d.PendingCount); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d deals\n", len(deals))
	return nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
