package billing

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func TestVerifyStripeWebhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.updated","api_version":"2020-08-27","data":{"object":{"id":"sub_1"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	event, err := VerifyStripeWebhook(payload, signed.Header, testWebhookSecret)
	if err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if event.ID != "evt_1" || string(event.Type) != EventSubscriptionUpdated {
		t.Fatalf("unexpected event %s %s", event.ID, event.Type)
	}
}

func TestVerifyStripeWebhookRejects(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.updated"}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	cases := map[string]struct {
		payload []byte
		header  string
		secret  string
	}{
		"empty header":   {payload, "", testWebhookSecret},
		"empty secret":   {payload, signed.Header, ""},
		"wrong secret":   {payload, signed.Header, "whsec_other"},
		"payload edited": {[]byte(`{"id":"evt_2"}`), signed.Header, testWebhookSecret},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := VerifyStripeWebhook(tc.payload, tc.header, tc.secret); err == nil {
				t.Fatal("expected signature error")
			}
		})
	}
}
