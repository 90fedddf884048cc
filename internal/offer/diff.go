package offer

import (
	"fmt"
	"strings"

	"github.com/evcraddock/house-deals/internal/money"
)

// Change is one field that differs between an offer and the offer it counters.
type Change struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Diff lists the terms that changed from parent to child, in display order.
func Diff(parent, child *Offer) []Change {
	if parent == nil || child == nil {
		return nil
	}
	a, b := parent.Terms, child.Terms

	var changes []Change
	add := func(field, from, to string) {
		if from != to {
			changes = append(changes, Change{Field: field, From: from, To: to})
		}
	}

	add("total_amount", money.Format(a.TotalAmount, a.Currency), money.Format(b.TotalAmount, b.Currency))
	add("payment_structure", describePayment(a.Payment), describePayment(b.Payment))
	add("offer_validity_date", a.ValidUntil, b.ValidUntil)
	add("other_conditions", a.OtherConditions, b.OtherConditions)
	add("deeds_signing_date", a.DeedsSigningDate, b.DeedsSigningDate)
	add("registration_fees_arrangement", a.RegistrationFeesArrangement, b.RegistrationFeesArrangement)
	add("physical_delivery_date", a.PhysicalDeliveryDate, b.PhysicalDeliveryDate)
	add("request_promesa", yesNo(a.RequestPromesa), yesNo(b.RequestPromesa))
	add("request_option_contract", yesNo(a.RequestOptionContract), yesNo(b.RequestOptionContract))

	return changes
}

func describePayment(p PaymentTerms) string {
	list, ok := p.(Installments)
	if !ok {
		return "full payment"
	}
	parts := make([]string, len(list))
	for i, inst := range list {
		parts[i] = fmt.Sprintf("%s %s by %s", inst.Date, money.Format(inst.Amount, inst.Currency), inst.PaymentMethod)
	}
	return fmt.Sprintf("%d installments: %s", len(list), strings.Join(parts, "; "))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
