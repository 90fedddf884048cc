package offer

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/money"
)

// Payload is what a party proposes: the price, how it is paid and the
// closing conditions.
type Payload struct {
	TotalAmount     int64          `json:"total_amount"`
	Currency        money.Currency `json:"currency"`
	Payment         PaymentTerms   `json:"-"`
	ValidUntil      string         `json:"offer_validity_date,omitempty"` // YYYY-MM-DD
	OtherConditions string         `json:"other_conditions,omitempty"`

	DeedsSigningDate            string `json:"deeds_signing_date,omitempty"`
	RegistrationFeesArrangement string `json:"registration_fees_arrangement,omitempty"`
	PhysicalDeliveryDate        string `json:"physical_delivery_date,omitempty"`
	RequestPromesa              bool   `json:"request_promesa"`
	RequestOptionContract       bool   `json:"request_option_contract"`
}

// MarshalJSON flattens the payment terms into payment_structure and installments.
func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	return json.Marshal(struct {
		alias
		paymentWire
	}{alias(p), encodePayment(p.Payment)})
}

// UnmarshalJSON reads payment_structure and installments into the closed PaymentTerms variant.
// Unknown keys are rejected so a misspelt term never silently defaults.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	var aux struct {
		alias
		paymentWire
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return apperr.Wrap(apperr.Validation, err, "invalid offer terms")
	}

	terms, err := decodePayment(aux.paymentWire)
	if err != nil {
		return err
	}

	*p = Payload(aux.alias)
	p.Payment = terms
	return nil
}

// Validate checks the payload before it is written to the ledger.
func (p *Payload) Validate() error {
	if p.TotalAmount <= 0 {
		return apperr.Validationf("total_amount must be positive, got %d", p.TotalAmount)
	}
	if !p.Currency.IsValid() {
		return apperr.Validationf("invalid currency: %q", p.Currency)
	}

	switch t := p.Payment.(type) {
	case nil:
		return apperr.Validationf("payment terms are required")
	case FullPayment:
	case Installments:
		if err := validateInstallments(t); err != nil {
			return err
		}
	}

	for _, d := range []struct{ field, value string }{
		{"offer_validity_date", p.ValidUntil},
		{"deeds_signing_date", p.DeedsSigningDate},
		{"physical_delivery_date", p.PhysicalDeliveryDate},
	} {
		if d.value == "" {
			continue
		}
		if err := validateDate(d.field, d.value); err != nil {
			return err
		}
	}

	return nil
}

func validateDate(field, value string) error {
	if _, err := time.Parse(DateLayout, value); err != nil {
		return apperr.Validationf("%s: invalid date format (use YYYY-MM-DD): %q", field, value)
	}
	return nil
}
