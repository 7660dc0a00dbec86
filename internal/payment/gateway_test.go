package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/engine"
)

func TestAuthorizePostsCharge(t *testing.T) {
	t.Parallel()
	var gotPath string
	var gotBody chargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, time.Second)
	if err := g.Authorize(context.Background(), "ada@example.com", 2500); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if gotPath != "/v1/charges" {
		t.Errorf("path = %q, want /v1/charges", gotPath)
	}
	if gotBody.PayerEmail != "ada@example.com" || gotBody.SumCents != 2500 {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestReversePostsRefund(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, time.Second)
	if err := g.Reverse(context.Background(), "ada@example.com", 1000); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if gotPath != "/v1/refunds" {
		t.Errorf("path = %q, want /v1/refunds", gotPath)
	}
}

func TestAuthorizeMapsPaymentRequired(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, time.Second)
	if err := g.Authorize(context.Background(), "ada@example.com", 2500); !errors.Is(err, engine.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestAuthorizeMapsGatewayTimeoutStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, time.Second)
	if err := g.Authorize(context.Background(), "ada@example.com", 2500); !errors.Is(err, engine.ErrGatewayTimeout) {
		t.Fatalf("err = %v, want ErrGatewayTimeout", err)
	}
}

func TestAuthorizeSlowProcessorTimesOut(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	g := NewHTTPGateway(srv.URL, 50*time.Millisecond)
	if err := g.Authorize(context.Background(), "ada@example.com", 2500); !errors.Is(err, engine.ErrGatewayTimeout) {
		t.Fatalf("err = %v, want ErrGatewayTimeout", err)
	}
}

func TestAuthorizeUnexpectedStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, time.Second)
	err := g.Authorize(context.Background(), "ada@example.com", 2500)
	if err == nil || errors.Is(err, engine.ErrInsufficientFunds) || errors.Is(err, engine.ErrGatewayTimeout) {
		t.Fatalf("err = %v, want a generic processor error", err)
	}
}
