package market

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
)

func TestDecodeCandidates(t *testing.T) {
	payload := []byte(`{
		"type": "search",
		"tag": "scalp",
		"items": [
			{"code": "005930", "name": "Samsung", "price": 71000, "volume": 1200000},
			{"code": "A000660", "name": "Hynix", "price": 185000, "volume": 800000},
			{"code": "", "name": "nameless", "price": 1000, "volume": 10},
			{"code": "035720", "name": "Kakao", "price": 0, "volume": 5000}
		]
	}`)

	got, err := decodeCandidates(payload, "scalp")
	if err != nil {
		t.Fatalf("decodeCandidates failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2 (empty code and zero price dropped)", len(got))
	}
	if got[0].Code != "A005930" {
		t.Errorf("code not normalized: %s", got[0].Code)
	}
	if got[1].Code != "A000660" {
		t.Errorf("prefixed code mangled: %s", got[1].Code)
	}
	if got[0].Tag != "scalp" {
		t.Errorf("tag = %s, want scalp", got[0].Tag)
	}
}

func TestDecodeCandidatesBadPayload(t *testing.T) {
	if _, err := decodeCandidates([]byte("not json"), "scalp"); err == nil {
		t.Fatal("malformed payload accepted")
	}
}

func TestSimMarketQuote(t *testing.T) {
	m := NewSimMarket()
	m.SetPrice("A005930", 71000)
	m.SetVolume("A005930", 500)

	q, err := m.Quote(context.Background(), "A005930")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if q.Price != 71000 || q.Volume != 500 {
		t.Errorf("quote = %+v", q)
	}

	_, err = m.Quote(context.Background(), "A999999")
	if !errors.Is(err, errs.ErrQuoteUnavailable) {
		t.Errorf("missing code err = %v, want ErrQuoteUnavailable", err)
	}
}

func TestSimMarketCandidates(t *testing.T) {
	m := NewSimMarket()
	m.QueueCandidates([]models.Candidate{
		{Code: "A005930", Price: 71000},
		{Code: "A000660", Price: 185000},
	})

	got, err := m.Candidates(context.Background(), "scalp")
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("candidates = %d, want 2", len(got))
	}
}

func TestFetcherPrices(t *testing.T) {
	m := NewSimMarket()
	m.SetPrice("A000001", 1000)
	m.SetPrice("A000002", 2000)
	// A000003 has no price and must simply be absent.

	f := NewFetcher(m, 4, nil)
	prices := f.Prices(context.Background(), []string{"A000001", "A000002", "A000003"})

	if len(prices) != 2 {
		t.Fatalf("prices = %d entries, want 2", len(prices))
	}
	if prices["A000001"] != 1000 || prices["A000002"] != 2000 {
		t.Errorf("prices = %v", prices)
	}
	if _, ok := prices["A000003"]; ok {
		t.Errorf("unresolvable code present in result")
	}
}

func TestFetcherPricesEmpty(t *testing.T) {
	f := NewFetcher(NewSimMarket(), 2, nil)
	if got := f.Prices(context.Background(), nil); len(got) != 0 {
		t.Errorf("prices for no codes = %v", got)
	}
}

func TestFetcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewSimMarket()
	m.SetPrice("A000001", 1000)

	f := NewFetcher(m, 2, NewRateLimiter(1, 1))
	done := make(chan struct{})
	go func() {
		f.Prices(ctx, []string{"A000001", "A000002", "A000003"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Prices did not return after cancellation")
	}
}

func TestRateLimiterBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 3)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("burst allowed %d, want 3", allowed)
	}
}

func TestNTPTimestampRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 8, 9, 0, 0, 500000000, time.UTC)

	buf := make([]byte, 8)
	putTimestamp(buf, at)
	got := readTimestamp(buf)

	if diff := got.Sub(at); diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("round trip drift = %v", diff)
	}
}

func TestNTPSyncerDefaults(t *testing.T) {
	s := NewNTPSyncer("")
	if s.Addr == "" {
		t.Errorf("default address not applied")
	}

	s = NewNTPSyncer("time.example.com")
	if s.Addr != "time.example.com:123" {
		t.Errorf("port not appended: %s", s.Addr)
	}
}

func TestNTPSyncerUnreachable(t *testing.T) {
	s := NewNTPSyncer("127.0.0.1:1")
	s.Timeout = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := s.Offset(ctx); !errors.Is(err, errs.ErrClockSyncUnavailable) {
		t.Errorf("err = %v, want ErrClockSyncUnavailable", err)
	}
}
