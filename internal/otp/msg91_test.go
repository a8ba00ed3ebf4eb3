package otp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/ezeehealth/clinicportal-go/internal/config"
	"github.com/ezeehealth/clinicportal-go/internal/httpclient"
	"github.com/ezeehealth/clinicportal-go/internal/otp"
)

func newTestHTTPClient() *httpclient.Client {
	// SSRF off so the client can reach the loopback test server
	return httpclient.New(&config.OutboundHTTPConfig{
		SSRFMode:         "off",
		TimeoutMS:        2000,
		ConnectTimeoutMS: 1000,
		MaxRedirects:     1,
		MaxResponseBytes: 65536,
	})
}

func TestMSG91Sender_Send(t *testing.T) {
	var gotQuery atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/otp" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery.Store(r.URL.Query())
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"type":"success"}`))
	}))
	defer srv.Close()

	sender := otp.NewMSG91Sender(newTestHTTPClient(), otp.MSG91Options{
		AuthKey:    "test-key",
		TemplateID: "tmpl-1",
		BaseURL:    srv.URL,
	})

	if err := sender.Send(context.Background(), "9876543210", "424242"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	q := gotQuery.Load().(url.Values)
	if got := q.Get("authkey"); got != "test-key" {
		t.Errorf("unexpected authkey %q", got)
	}
	if got := q.Get("template_id"); got != "tmpl-1" {
		t.Errorf("unexpected template_id %q", got)
	}
	// Bare 10-digit number gets the country code prefix
	if got := q.Get("mobile"); got != "919876543210" {
		t.Errorf("unexpected mobile %q", got)
	}
	if got := q.Get("otp"); got != "424242" {
		t.Errorf("unexpected otp %q", got)
	}
	if got := q.Get("otp_length"); got != "6" {
		t.Errorf("unexpected otp_length %q", got)
	}
}

func TestMSG91Sender_KeepsFullNumbers(t *testing.T) {
	var gotMobile atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMobile.Store(r.URL.Query().Get("mobile"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := otp.NewMSG91Sender(newTestHTTPClient(), otp.MSG91Options{
		AuthKey:    "k",
		TemplateID: "t",
		BaseURL:    srv.URL,
	})

	if err := sender.Send(context.Background(), "+919876543210", "111111"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got := gotMobile.Load().(string); got != "919876543210" {
		t.Errorf("expected prefixed number passed through, got %s", got)
	}
}

func TestMSG91Sender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := otp.NewMSG91Sender(newTestHTTPClient(), otp.MSG91Options{
		AuthKey:    "k",
		TemplateID: "t",
		BaseURL:    srv.URL,
	})

	if err := sender.Send(context.Background(), "9876543210", "111111"); err != nil {
		t.Fatalf("Send should succeed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestMSG91Sender_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","message":"invalid authkey"}`))
	}))
	defer srv.Close()

	sender := otp.NewMSG91Sender(newTestHTTPClient(), otp.MSG91Options{
		AuthKey:    "bad",
		TemplateID: "t",
		BaseURL:    srv.URL,
	})

	if err := sender.Send(context.Background(), "9876543210", "111111"); err == nil {
		t.Fatal("expected error for 401 response")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call for a client error, got %d", calls.Load())
	}
}

func TestMSG91Sender_GivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sender := otp.NewMSG91Sender(newTestHTTPClient(), otp.MSG91Options{
		AuthKey:    "k",
		TemplateID: "t",
		BaseURL:    srv.URL,
	})

	if err := sender.Send(context.Background(), "9876543210", "111111"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}
