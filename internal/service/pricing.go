package service

import (
	"go-moodle-catalog/internal/data"
	"strconv"
	"strings"
)

// Promotional and default price rows are told apart by default_status_id.
const (
	defaultStatusStandard    = 0
	defaultStatusPromotional = 1
)

// BestPrice picks the price to display for a course. Methods without a cost
// (nil or zero) are ignored. The first promotional method in list order wins;
// otherwise the first standard method; otherwise nil.
func BestPrice(methods []*data.EnrolMethod) *data.EnrolMethod {
	var standard *data.EnrolMethod
	for _, m := range methods {
		if m == nil || m.Cost == nil || *m.Cost == 0 {
			continue
		}
		status := int64(defaultStatusStandard)
		if m.DefaultStatusID != nil {
			status = *m.DefaultStatusID
		}
		if status == defaultStatusPromotional {
			return m
		}
		if standard == nil && status == defaultStatusStandard {
			standard = m
		}
	}
	return standard
}

// PerInstallment is the cost divided by the installments, or the full cost
// when the method has no installments.
func PerInstallment(m *data.EnrolMethod) float64 {
	if m == nil || m.Cost == nil {
		return 0
	}
	if m.Installments != nil && *m.Installments > 0 {
		return *m.Cost / float64(*m.Installments)
	}
	return *m.Cost
}

// PriceFormatter renders prices using the pricing settings.
type PriceFormatter struct {
	DecimalSeparator string
	CurrencySymbol   string
	Message          string
}

// Amount renders a value with two decimals, no thousands separator and the
// currency symbol, e.g. "R$ 99,90".
func (f PriceFormatter) Amount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if f.DecimalSeparator != "" && f.DecimalSeparator != "." {
		s = strings.Replace(s, ".", f.DecimalSeparator, 1)
	}
	if f.CurrencySymbol == "" {
		return s
	}
	return f.CurrencySymbol + " " + s
}

// Format fills the {price} and {installments} placeholders of the message.
func (f PriceFormatter) Format(price float64, installments int64) string {
	r := strings.NewReplacer(
		"{price}", f.Amount(price),
		"{installments}", strconv.FormatInt(installments, 10),
	)
	return r.Replace(f.Message)
}

// PriceView is the display form of a course's best price.
type PriceView struct {
	Cost           float64 `json:"cost"`
	Currency       string  `json:"currency,omitempty"`
	Installments   int64   `json:"installments"`
	PerInstallment float64 `json:"per_installment"`
	Promotional    bool    `json:"promotional"`
	Amount         string  `json:"amount"`
	Text           string  `json:"text"`
}

// View builds the display price of m, or nil when m is nil.
func (f PriceFormatter) View(m *data.EnrolMethod) *PriceView {
	if m == nil || m.Cost == nil {
		return nil
	}
	v := &PriceView{
		Cost:           *m.Cost,
		PerInstallment: PerInstallment(m),
		Promotional:    m.DefaultStatusID != nil && *m.DefaultStatusID == defaultStatusPromotional,
		Amount:         f.Amount(*m.Cost),
	}
	if m.Currency != nil {
		v.Currency = *m.Currency
	}
	if m.Installments != nil && *m.Installments > 1 {
		v.Installments = *m.Installments
		v.Text = f.Format(v.PerInstallment, v.Installments)
	} else {
		v.Installments = 1
		v.Text = v.Amount
	}
	return v
}
