// Package phonepetest provides in-memory stand-ins for the processor client.
package phonepetest

import (
	"context"
	"encoding/json"
	"sync"

	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/phonepe"
)

// StaticToken always returns the same access token.
type StaticToken string

func (s StaticToken) Get(context.Context) (string, error) { return string(s), nil }

// Processor records calls and returns configurable responses.
type Processor struct {
	mu sync.Mutex

	SetupState     string
	SetupOrderID   string
	SetupIntentURL string
	StatusState    string
	Err            error

	Setups   []phonepe.SetupRequest
	Notifies []phonepe.NotifyRequest
	Redeems  []string
	Cancels  []string
	Checks   []string
}

// Failing returns a processor whose every call fails with a remote API error.
func Failing(details any) *Processor {
	return &Processor{Err: pkgerrors.New(pkgerrors.CodeRemoteAPI, "payment processor request failed").WithDetails(details)}
}

func (p *Processor) SetupSubscription(_ context.Context, _ string, body phonepe.SetupRequest) (*phonepe.Result[phonepe.SetupResponse], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Setups = append(p.Setups, body)
	if p.Err != nil {
		return nil, p.Err
	}
	data := phonepe.SetupResponse{OrderID: p.SetupOrderID, State: p.SetupState, IntentURL: p.SetupIntentURL}
	return &phonepe.Result[phonepe.SetupResponse]{Data: data, Raw: mustRaw(data)}, nil
}

func (p *Processor) SubscriptionStatus(_ context.Context, _ string, subscriptionID string) (*phonepe.Result[phonepe.StatusResponse], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Checks = append(p.Checks, subscriptionID)
	if p.Err != nil {
		return nil, p.Err
	}
	data := phonepe.StatusResponse{MerchantSubscriptionID: subscriptionID, State: p.StatusState}
	return &phonepe.Result[phonepe.StatusResponse]{Data: data, Raw: mustRaw(data)}, nil
}

func (p *Processor) Notify(_ context.Context, _ string, body phonepe.NotifyRequest) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Notifies = append(p.Notifies, body)
	if p.Err != nil {
		return nil, p.Err
	}
	return mustRaw(map[string]string{"orderId": "OMO" + body.MerchantOrderID, "state": "NOTIFICATION_IN_PROGRESS"}), nil
}

func (p *Processor) Redeem(_ context.Context, _ string, merchantOrderID string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Redeems = append(p.Redeems, merchantOrderID)
	if p.Err != nil {
		return nil, p.Err
	}
	return mustRaw(map[string]string{"state": "PENDING"}), nil
}

func (p *Processor) Cancel(_ context.Context, _ string, subscriptionID string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cancels = append(p.Cancels, subscriptionID)
	if p.Err != nil {
		return nil, p.Err
	}
	return json.RawMessage(`{}`), nil
}

// NotifyCount reports how many notify calls were made.
func (p *Processor) NotifyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Notifies)
}

func mustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
