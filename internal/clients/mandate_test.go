package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"mandate-reconciler/internal/domain"
)

func TestCancel(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
	}))
	defer server.Close()

	c := NewMandateClient(server.URL, 5*time.Second)
	if err := c.Cancel(context.Background(), "12345", domain.CancelReasonMandateFailed); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if gotPath != "/motororchestrator/api/v1/renewals/mandate/cancel" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotBody["proposal_id"] != "12345" || gotBody["reason"] != "Mandate Failed by User" {
		t.Fatalf("wrong cancel body: %v", gotBody)
	}
}

func TestOptOut(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/motororchestrator/api/v1/renewals/mandate/opt-out" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
	}))
	defer server.Close()

	c := NewMandateClient(server.URL, 5*time.Second)
	if err := c.OptOut(context.Background(), "R1"); err != nil {
		t.Fatalf("opt out: %v", err)
	}
	if gotBody["proposal_id"] != "R1" || gotBody["consent"] != true {
		t.Fatalf("wrong opt-out body: %v", gotBody)
	}
}

func TestOptOut_NonOKIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "already opted out", http.StatusConflict)
	}))
	defer server.Close()

	c := NewMandateClient(server.URL, 5*time.Second)
	err := c.OptOut(context.Background(), "R1")

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.Status != http.StatusConflict {
		t.Fatalf("expected UpstreamError 409, got %v", err)
	}
}

func TestForwardPaymentCallback_SendsRawBody(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/motororchestrator/api/v1/callbacks/payment/v2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	raw := []byte(`{"type":"payment","txn":"T1","unknown_field":42}`)
	c := NewMandateClient(server.URL, 5*time.Second)
	if err := c.ForwardPaymentCallback(context.Background(), raw); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if string(gotBody) != string(raw) {
		t.Fatalf("payload was not forwarded untouched: %s", gotBody)
	}
}
