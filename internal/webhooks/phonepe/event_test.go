package phonepewebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
)

func TestParseEventKind(t *testing.T) {
	cases := map[string]EventKind{
		"subscription.setup.order.completed":            EventSetupCompleted,
		"subscription.setup.order.failed":               EventSetupFailed,
		"subscription.redemption.order.completed":       EventRedemptionCompleted,
		"subscription.redemption.transaction.completed": EventRedemptionCompleted,
		"subscription.redemption.order.failed":          EventRedemptionFailed,
		"subscription.redemption.transaction.failed":    EventRedemptionFailed,
		"subscription.cancelled":                        EventCancelled,
		"subscription.paused":                           EventPaused,
		"subscription.unpaused":                         EventUnpaused,
		"subscription.revoked":                          EventUnknown,
		"":                                              EventUnknown,
	}
	for name, want := range cases {
		if got := ParseEventKind(name); got != want {
			t.Fatalf("ParseEventKind(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDecode(t *testing.T) {
	event, err := Decode([]byte(`{"event":"subscription.redemption.order.completed","payload":{"merchantOrderId":"MO_1","paymentDetails":[{"transactionId":"T1"}]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.Kind != EventRedemptionCompleted || event.Payload.TransactionID() != "T1" || event.Payload.MerchantOrderID != "MO_1" {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := Decode([]byte(`not json`)); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := Decode([]byte(`{"payload":{}}`)); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected missing event error, got %v", err)
	}
}

func TestPayloadSubscriptionIDFallsBackToPaymentFlow(t *testing.T) {
	p := Payload{PaymentFlow: PaymentFlow{MerchantSubscriptionID: "MS_flow"}}
	if p.SubscriptionID() != "MS_flow" {
		t.Fatalf("expected fallback, got %q", p.SubscriptionID())
	}
	p.MerchantSubscriptionID = "MS_top"
	if p.SubscriptionID() != "MS_top" {
		t.Fatalf("expected top-level id, got %q", p.SubscriptionID())
	}
}

func TestAuthorizer(t *testing.T) {
	if NewAuthorizer("", "") != nil {
		t.Fatal("expected nil authorizer without credentials")
	}
	var disabled *Authorizer
	if !disabled.Verify("anything") {
		t.Fatal("nil authorizer accepts all")
	}

	auth := NewAuthorizer("merchant", "s3cret")
	sum := sha256.Sum256([]byte("merchant:s3cret"))
	digest := hex.EncodeToString(sum[:])
	if !auth.Verify(digest) {
		t.Fatal("expected digest to verify")
	}
	if !auth.Verify("SHA256 " + digest) {
		t.Fatal("expected prefixed digest to verify")
	}
	if auth.Verify("deadbeef") || auth.Verify("") {
		t.Fatal("expected mismatch to fail")
	}
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryStore) WebhookKey(provider, id string) string {
	return "bikerent:webhook:" + provider + ":" + id
}

func TestIdempotencyGuard(t *testing.T) {
	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	ctx := context.Background()
	digest := BodyDigest([]byte(`{"event":"subscription.cancelled"}`))

	seen, err := guard.CheckAndMark(ctx, digest)
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(ctx, digest)
	if err != nil || !seen {
		t.Fatalf("redelivery: seen=%v err=%v", seen, err)
	}
	if err := guard.Delete(ctx, digest); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, _ = guard.CheckAndMark(ctx, digest)
	if seen {
		t.Fatal("expected delivery to be processable after delete")
	}

	if _, err := NewIdempotencyGuard(nil, time.Hour); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := guard.CheckAndMark(ctx, ""); err == nil {
		t.Fatal("expected empty digest error")
	}
}
