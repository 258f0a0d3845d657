package fees

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core"
)

// Payment methods
const (
	MethodCheque  = "cheque"
	MethodDeposit = "deposit"
)

// Payment holds the proof of payment. Only the field group of the selected method is kept.
type Payment struct {
	PaymentMethod         null.String `json:"paymentMethod" db:"payment_method"`
	ChequeNumber          null.String `json:"chequeNumber" db:"cheque_number"`
	ChequeDate            null.Time   `json:"chequeDate" db:"cheque_date"`
	DepositSlipNumber     null.String `json:"depositSlipNumber" db:"deposit_slip_number"`
	DepositDate           null.Time   `json:"depositDate" db:"deposit_date"`
	DepositPayOrderNumber null.String `json:"depositPayOrderNumber" db:"deposit_pay_order_number"`
}

// Normalize clears the field group that does not belong to the selected payment method.
func (p *Payment) Normalize() {
	switch p.PaymentMethod.String {
	case MethodCheque:
		p.DepositSlipNumber = null.String{}
		p.DepositDate = null.Time{}
		p.DepositPayOrderNumber = null.String{}
	case MethodDeposit:
		p.ChequeNumber = null.String{}
		p.ChequeDate = null.Time{}
	}
}

// PaymentInput is the request side of Payment; nil fields are left untouched.
type PaymentInput struct {
	PaymentMethod         *string       `json:"paymentMethod" validate:"omitempty,paymethod"`
	ChequeNumber          *string       `json:"chequeNumber" validate:"omitempty,max=64"`
	ChequeDate            core.FlexTime `json:"chequeDate"`
	DepositSlipNumber     *string       `json:"depositSlipNumber" validate:"omitempty,max=64"`
	DepositDate           core.FlexTime `json:"depositDate"`
	DepositPayOrderNumber *string       `json:"depositPayOrderNumber" validate:"omitempty,max=64"`
}

// DateErrors lists the payment dates that could not be parsed.
func (in PaymentInput) DateErrors() []core.FieldError {
	return append(in.ChequeDate.FieldErrors("chequeDate"), in.DepositDate.FieldErrors("depositDate")...)
}

// ApplyTo copies the supplied fields onto p, then enforces method exclusivity.
func (in PaymentInput) ApplyTo(p *Payment) {
	if in.PaymentMethod != nil {
		p.PaymentMethod = OptionalString(in.PaymentMethod)
	}
	if in.ChequeNumber != nil {
		p.ChequeNumber = OptionalString(in.ChequeNumber)
	}
	if in.ChequeDate.Set {
		p.ChequeDate = in.ChequeDate.NullTime()
	}
	if in.DepositSlipNumber != nil {
		p.DepositSlipNumber = OptionalString(in.DepositSlipNumber)
	}
	if in.DepositDate.Set {
		p.DepositDate = in.DepositDate.NullTime()
	}
	if in.DepositPayOrderNumber != nil {
		p.DepositPayOrderNumber = OptionalString(in.DepositPayOrderNumber)
	}
	p.Normalize()
}

// OptionalString maps a trimmed, possibly empty input to a nullable column value.
func OptionalString(s *string) null.String {
	if s == nil {
		return null.String{}
	}
	v := core.CleanString(*s)
	return null.NewString(v, v != "")
}

// StudentFees is the examination fee paid by a registered school for its candidates.
type StudentFees struct {
	SchoolCode string `json:"schoolCode" db:"school_code"`
	Payment
	TotalAmount        string      `json:"totalAmount" db:"total_amount"`
	PrimaryAmount      string      `json:"primaryAmount" db:"primary_amount"`
	MiddleAmount       string      `json:"middleAmount" db:"middle_amount"`
	PrimaryCandidates  int         `json:"primaryCandidates" db:"primary_candidates"`
	MiddleCandidates   int         `json:"middleCandidates" db:"middle_candidates"`
	HeadOfInstitution  null.String `json:"headOfInstitution" db:"head_of_institution"`
	DisclaimerAccepted bool        `json:"disclaimerAccepted" db:"disclaimer_accepted"`
	HeadSignature      null.String `json:"headSignature" db:"head_signature"`
	InstitutionStamp   null.String `json:"institutionStamp" db:"institution_stamp"`
	PaymentScreenshot  null.String `json:"paymentScreenshot" db:"payment_screenshot"`
	CreatedAt          time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time   `json:"updatedAt" db:"updated_at"`
}

// Pricing is the per-candidate fee of each level.
type Pricing struct {
	PrimaryPerCandidate int
	MiddlePerCandidate  int
}

// Calculate fills the amounts from the candidate counts.
func (p Pricing) Calculate(sf *StudentFees) {
	primary := sf.PrimaryCandidates * p.PrimaryPerCandidate
	middle := sf.MiddleCandidates * p.MiddlePerCandidate
	sf.PrimaryAmount = formatAmount(primary)
	sf.MiddleAmount = formatAmount(middle)
	sf.TotalAmount = formatAmount(primary + middle)
}

func formatAmount(v int) string {
	return fmt.Sprintf("%d.00", v)
}
