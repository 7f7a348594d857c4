package phonepe

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Flow and mode constants used in subscription requests.
const (
	FlowSubscriptionSetup      = "SUBSCRIPTION_SETUP"
	FlowSubscriptionRedemption = "SUBSCRIPTION_REDEMPTION"
	AuthWorkflowPennyDrop      = "PENNY_DROP"
	AmountTypeFixed            = "FIXED"
	PaymentModeUPICollect      = "UPI_COLLECT"
	PaymentDetailsVPA          = "VPA"
	RetryStrategyStandard      = "STANDARD"
)

// TokenResponse is the client-credentials exchange result. ExpiresAt is unix seconds.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	TokenType   string `json:"token_type,omitempty"`
}

type SetupRequest struct {
	MerchantOrderID string           `json:"merchantOrderId"`
	Amount          int64            `json:"amount"`
	ExpireAt        int64            `json:"expireAt"`
	PaymentFlow     SetupPaymentFlow `json:"paymentFlow"`
}

type SetupPaymentFlow struct {
	Type                   string      `json:"type"`
	MerchantSubscriptionID string      `json:"merchantSubscriptionId"`
	AuthWorkflowType       string      `json:"authWorkflowType"`
	AmountType             string      `json:"amountType"`
	MaxAmount              int64       `json:"maxAmount"`
	Frequency              string      `json:"frequency"`
	ExpireAt               int64       `json:"expireAt"`
	PaymentMode            PaymentMode `json:"paymentMode"`
}

type PaymentMode struct {
	Type    string             `json:"type"`
	Details PaymentModeDetails `json:"details"`
}

type PaymentModeDetails struct {
	Type string `json:"type"`
	VPA  string `json:"vpa"`
}

type SetupResponse struct {
	OrderID   string `json:"orderId"`
	State     string `json:"state"`
	IntentURL string `json:"intentUrl"`
	ExpireAt  int64  `json:"expireAt,omitempty"`
}

type StatusResponse struct {
	MerchantSubscriptionID string `json:"merchantSubscriptionId"`
	SubscriptionID         string `json:"subscriptionId,omitempty"`
	State                  string `json:"state"`
}

type NotifyRequest struct {
	MerchantOrderID string            `json:"merchantOrderId"`
	Amount          int64             `json:"amount"`
	ExpireAt        int64             `json:"expireAt"`
	PaymentFlow     NotifyPaymentFlow `json:"paymentFlow"`
}

type NotifyPaymentFlow struct {
	Type                    string `json:"type"`
	MerchantSubscriptionID  string `json:"merchantSubscriptionId"`
	RedemptionRetryStrategy string `json:"redemptionRetryStrategy"`
	AutoDebit               bool   `json:"autoDebit"`
}

type redeemRequest struct {
	MerchantOrderID string `json:"merchantOrderId"`
}

// Result pairs a decoded response with the raw body returned to operators.
type Result[T any] struct {
	Data T
	Raw  json.RawMessage
}

var hundred = decimal.NewFromInt(100)

// Paise converts a rupee amount to the integer minor units the API expects.
func Paise(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
