package offer

import (
	"encoding/json"
	"fmt"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/money"
)

// PaymentStructure names how the total is paid.
type PaymentStructure string

const (
	StructureFull         PaymentStructure = "full"
	StructureInstallments PaymentStructure = "installments"
)

// PaymentMethod is how an installment is settled.
type PaymentMethod string

const (
	Cash   PaymentMethod = "cash"
	Crypto PaymentMethod = "crypto"
	Wire   PaymentMethod = "wire"
	Check  PaymentMethod = "check"
)

// PaymentMethods is the set of accepted payment methods.
var PaymentMethods = []PaymentMethod{Cash, Crypto, Wire, Check}

// IsValid checks if a payment method is accepted.
func (m PaymentMethod) IsValid() bool {
	for _, v := range PaymentMethods {
		if m == v {
			return true
		}
	}
	return false
}

// PaymentTerms is either FullPayment or Installments. The set is closed.
type PaymentTerms interface {
	Structure() PaymentStructure
	paymentTerms()
}

// FullPayment pays the total in one transfer.
type FullPayment struct{}

// Structure implements PaymentTerms.
func (FullPayment) Structure() PaymentStructure { return StructureFull }
func (FullPayment) paymentTerms()               {}

// Installment is one scheduled payment.
type Installment struct {
	Date          string         `json:"date"` // YYYY-MM-DD
	Amount        int64          `json:"amount"`
	Currency      money.Currency `json:"currency"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
}

// Installments pays the total in an ordered series of payments.
type Installments []Installment

// Structure implements PaymentTerms.
func (Installments) Structure() PaymentStructure { return StructureInstallments }
func (Installments) paymentTerms()               {}

// paymentWire is the JSON and storage shape of PaymentTerms.
type paymentWire struct {
	Structure    PaymentStructure `json:"payment_structure"`
	Installments []Installment    `json:"installments,omitempty"`
}

func encodePayment(p PaymentTerms) paymentWire {
	switch t := p.(type) {
	case Installments:
		return paymentWire{Structure: StructureInstallments, Installments: []Installment(t)}
	default:
		return paymentWire{Structure: StructureFull}
	}
}

// decodePayment enforces that installments are present iff the structure says so.
func decodePayment(w paymentWire) (PaymentTerms, error) {
	switch w.Structure {
	case StructureFull:
		if len(w.Installments) > 0 {
			return nil, apperr.Validationf("installments are only allowed with payment_structure %q", StructureInstallments)
		}
		return FullPayment{}, nil
	case StructureInstallments:
		if len(w.Installments) == 0 {
			return nil, apperr.Validationf("payment_structure %q requires at least one installment", StructureInstallments)
		}
		return Installments(w.Installments), nil
	case "":
		if len(w.Installments) > 0 {
			return Installments(w.Installments), nil
		}
		return FullPayment{}, nil
	default:
		return nil, apperr.Validationf("invalid payment_structure: %q", w.Structure)
	}
}

func validateInstallments(list Installments) error {
	if len(list) == 0 {
		return apperr.Validationf("at least one installment is required")
	}
	for i, inst := range list {
		n := i + 1
		if inst.Date == "" {
			return apperr.Validationf("installment %d: date is required", n)
		}
		if err := validateDate(fmt.Sprintf("installment %d: date", n), inst.Date); err != nil {
			return err
		}
		if inst.Amount <= 0 {
			return apperr.Validationf("installment %d: amount must be positive, got %d", n, inst.Amount)
		}
		if !inst.Currency.IsValid() {
			return apperr.Validationf("installment %d: invalid currency %q", n, inst.Currency)
		}
		if !inst.PaymentMethod.IsValid() {
			return apperr.Validationf("installment %d: invalid payment_method %q", n, inst.PaymentMethod)
		}
	}
	return nil
}

func marshalInstallments(p PaymentTerms) (string, error) {
	list, ok := p.(Installments)
	if !ok || len(list) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]Installment(list))
	if err != nil {
		return "", fmt.Errorf("marshaling installments: %w", err)
	}
	return string(data), nil
}
