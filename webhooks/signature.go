package webhooks

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-payledger/core"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	DefaultSignatureHeader = "stripe-signature"
	DefaultIdentityHeader  = "x-firebase-user-auth"
)

// EventVerifier authenticates a raw provider request.
type EventVerifier interface {
	Verify(body []byte, headers http.Header) (core.EventEnvelope, error)
}

type SignatureVerifier struct {
	Secret          string
	SignatureHeader string
	IdentityHeader  string
	Tolerance       time.Duration
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{
		Secret:          secret,
		SignatureHeader: DefaultSignatureHeader,
		IdentityHeader:  DefaultIdentityHeader,
		Tolerance:       webhook.DefaultTolerance,
	}
}

// Verify checks that both headers are present before computing the
// signature. The returned envelope carries the raw data.object payload and the
// identity assertion.
func (v *SignatureVerifier) Verify(body []byte, headers http.Header) (core.EventEnvelope, error) {
	if v == nil {
		return core.EventEnvelope{}, core.SignatureMismatch(errors.New("signature verifier is not configured"))
	}
	signatureHeader := v.signatureHeader()
	identityHeader := v.identityHeader()

	signature := strings.TrimSpace(headers.Get(signatureHeader))
	if signature == "" {
		return core.EventEnvelope{}, core.MissingSignatureHeader(signatureHeader)
	}
	assertion := strings.TrimSpace(headers.Get(identityHeader))
	if assertion == "" {
		return core.EventEnvelope{}, core.MissingIdentityHeader(identityHeader)
	}
	if strings.TrimSpace(v.Secret) == "" {
		return core.EventEnvelope{}, core.SignatureMismatch(errors.New("webhook secret is not configured"))
	}

	event, err := webhook.ConstructEventWithOptions(body, signature, v.Secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance(),
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return core.EventEnvelope{}, core.SignatureMismatch(err)
	}
	if strings.TrimSpace(event.ID) == "" {
		return core.EventEnvelope{}, core.SignatureMismatch(errors.New("event id is missing"))
	}

	envelope := core.EventEnvelope{
		EventID:        strings.TrimSpace(event.ID),
		EventType:      strings.TrimSpace(string(event.Type)),
		Livemode:       event.Livemode,
		AssertionToken: assertion,
	}
	if event.Created > 0 {
		envelope.Created = time.Unix(event.Created, 0).UTC()
	}
	if event.Data != nil {
		envelope.Payload = append(envelope.Payload, event.Data.Raw...)
	}
	return envelope, nil
}

func (v *SignatureVerifier) signatureHeader() string {
	if v != nil && strings.TrimSpace(v.SignatureHeader) != "" {
		return strings.TrimSpace(v.SignatureHeader)
	}
	return DefaultSignatureHeader
}

func (v *SignatureVerifier) identityHeader() string {
	if v != nil && strings.TrimSpace(v.IdentityHeader) != "" {
		return strings.TrimSpace(v.IdentityHeader)
	}
	return DefaultIdentityHeader
}

func (v *SignatureVerifier) tolerance() time.Duration {
	if v != nil && v.Tolerance > 0 {
		return v.Tolerance
	}
	return webhook.DefaultTolerance
}

var _ EventVerifier = (*SignatureVerifier)(nil)
