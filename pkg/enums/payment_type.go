package enums

// PaymentType labels how a payment was initiated.
type PaymentType string

const (
	PaymentTypeAutomatedWeeklyDebit PaymentType = "AUTOMATED_WEEKLY_DEBIT"
)

// String implements fmt.Stringer.
func (p PaymentType) String() string {
	return string(p)
}
