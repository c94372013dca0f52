package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test_secret"

func eventPayload(eventID string, eventType string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": %q,
  "created": %d,
  "livemode": false,
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "amount_total": 499,
      "currency": "usd",
      "customer": "cus_1",
      "client_reference_id": "ref_1"
    }
  }
}`, eventID, eventType, time.Now().Unix()))
}

func signatureHeader(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func nowForTest() time.Time {
	return time.Now()
}

func signedHeaders(t *testing.T, payload []byte, assertion string) http.Header {
	t.Helper()
	headers := http.Header{}
	headers.Set(DefaultSignatureHeader, signatureHeader(testWebhookSecret, payload, time.Now()))
	if assertion != "" {
		headers.Set(DefaultIdentityHeader, assertion)
	}
	return headers
}
