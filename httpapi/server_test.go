package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-payledger/core"
	"github.com/goliatone/go-payledger/webhooks"
)

type recordingProcessor struct {
	requests []webhooks.Request
	outcome  webhooks.Outcome
}

func (p *recordingProcessor) ProcessWebhook(_ context.Context, req webhooks.Request) webhooks.Outcome {
	p.requests = append(p.requests, req)
	return p.outcome
}

func TestServer_HealthRoutesMatch(t *testing.T) {
	handler := NewServer(&recordingProcessor{}).Handler()
	for _, path := range []string{"/", "/health"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rec.Code)
		}
		var body HealthBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if body.Status != "ok" || body.Message != HealthMessage {
			t.Fatalf("unexpected health body %#v", body)
		}
	}
}

func TestServer_WebhookPassesRouteAndHeaders(t *testing.T) {
	_, processed := webhooks.ProcessedResponse(false)
	processor := &recordingProcessor{outcome: webhooks.Outcome{StatusCode: http.StatusOK, Body: processed}}
	handler := NewServer(processor).Handler()

	req := httptest.NewRequest(http.MethodPost, "/webhook/merchant_a/premium", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	req.Header.Set("X-Firebase-User-Auth", "tok_1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"received":true,"processed":true}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if len(processor.requests) != 1 {
		t.Fatalf("expected one processed request, got %d", len(processor.requests))
	}
	got := processor.requests[0]
	if got.MerchantID != "merchant_a" || got.ProductID != "premium" {
		t.Fatalf("unexpected route params %#v", got)
	}
	if got.Headers.Get("stripe-signature") != "t=1,v1=abc" || got.Headers.Get("x-firebase-user-auth") != "tok_1" {
		t.Fatalf("expected headers to be forwarded, got %#v", got.Headers)
	}
	if string(got.Body) != `{"id":"evt_1"}` {
		t.Fatalf("expected raw body, got %q", got.Body)
	}
}

func TestServer_WebhookMapsErrorOutcome(t *testing.T) {
	processor := &recordingProcessor{outcome: webhooks.Outcome{Err: &core.UnsupportedProductError{
		MerchantID: "merchant_a",
		ProductID:  "plan",
		Type:       core.ProductTypeSubscription,
	}}}
	handler := NewServer(processor, WithUnsupportedStatus(http.StatusNotImplemented)).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/merchant_a/plan", strings.NewReader("{}")))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected configured unsupported status, got %d", rec.Code)
	}
	var body webhooks.ResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Detail == "" {
		t.Fatalf("expected a detail message")
	}
}

func TestServer_WebhookRejectsOversizedBody(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewServer(processor, WithMaxBodyBytes(8)).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/m/p", bytes.NewReader(make([]byte, 64))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if len(processor.requests) != 0 {
		t.Fatalf("expected oversized body to skip processing")
	}
}

func TestServer_MetricsRouteOnlyWhenEnabled(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(&recordingProcessor{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", rec.Code)
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payledger_webhook_total 1\n"))
	})
	rec = httptest.NewRecorder()
	NewServer(&recordingProcessor{}, WithMetricsHandler(metrics)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "payledger_webhook_total") {
		t.Fatalf("expected metrics exposition, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_WebhookWithoutProcessor(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/m/p", strings.NewReader("{}")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
