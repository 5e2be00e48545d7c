package results

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stakeline/betengine/internal/models"
)

func TestFeedClient_SettledResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("match_id"); got != "m-1" {
			t.Errorf("Expected match_id m-1, got %s", got)
		}
		if got := r.URL.Query().Get("selection"); got != "home" {
			t.Errorf("Expected selection home, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"settled": true, "result": "won", "profit": 21.5}`))
	}))
	defer server.Close()

	client := NewFeedClient(server.URL, 5*time.Second, 3, time.Millisecond)
	outcome, err := client.Result(context.Background(), testBet("m-1"))
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if outcome == nil {
		t.Fatal("Expected an outcome")
	}
	if outcome.Status != models.BetWon {
		t.Errorf("Expected won, got %s", outcome.Status)
	}
	if outcome.Profit == nil || *outcome.Profit != 21.5 {
		t.Error("Expected profit 21.5 from the feed")
	}
}

func TestFeedClient_UnsettledReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"settled": false}`))
	}))
	defer server.Close()

	client := NewFeedClient(server.URL, 5*time.Second, 3, time.Millisecond)
	outcome, err := client.Result(context.Background(), testBet("m-1"))
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if outcome != nil {
		t.Errorf("Expected nil for unsettled result, got %+v", outcome)
	}
}

func TestFeedClient_NotFoundReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewFeedClient(server.URL, 5*time.Second, 3, time.Millisecond)
	outcome, err := client.Result(context.Background(), testBet("m-1"))
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if outcome != nil {
		t.Errorf("Expected nil for unknown match, got %+v", outcome)
	}
}

func TestFeedClient_UnknownResultIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"settled": true, "result": "postponed"}`))
	}))
	defer server.Close()

	client := NewFeedClient(server.URL, 5*time.Second, 3, time.Millisecond)
	if _, err := client.Result(context.Background(), testBet("m-1")); err == nil {
		t.Error("Expected error for unknown result value")
	}
}

func TestFeedClient_RetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"settled": true, "result": "lost"}`))
	}))
	defer server.Close()

	client := NewFeedClient(server.URL, 5*time.Second, 3, time.Millisecond)
	outcome, err := client.Result(context.Background(), testBet("m-1"))
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if outcome == nil || outcome.Status != models.BetLost {
		t.Errorf("Expected lost outcome after retries, got %+v", outcome)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestFeedClient_GivesUpAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewFeedClient(server.URL, 5*time.Second, 2, time.Millisecond)
	if _, err := client.Result(context.Background(), testBet("m-1")); err == nil {
		t.Error("Expected error after exhausting retries")
	}
}

func TestFeedClient_ContextCancellationStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewFeedClient(server.URL, 5*time.Second, 5, time.Hour)
	if _, err := client.Result(ctx, testBet("m-1")); err == nil {
		t.Error("Expected error from cancelled context")
	}
}
