package market

import (
	"context"
	"sync"
	"time"

	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
)

// SimMarket is an in-memory quote and candidate source for offline runs
// and tests. Prices are set externally; lookups never block.
type SimMarket struct {
	mu         sync.RWMutex
	prices     map[string]float64
	volumes    map[string]int64
	candidates []models.Candidate
}

var (
	_ QuoteProvider   = (*SimMarket)(nil)
	_ CandidateSource = (*SimMarket)(nil)
)

// NewSimMarket creates an empty simulated market.
func NewSimMarket() *SimMarket {
	return &SimMarket{
		prices:  make(map[string]float64),
		volumes: make(map[string]int64),
	}
}

// SetPrice sets the current price for code.
func (m *SimMarket) SetPrice(code string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[code] = price
}

// SetVolume sets the reported volume for code.
func (m *SimMarket) SetVolume(code string, volume int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes[code] = volume
}

// QueueCandidates replaces the candidate list returned by Candidates.
func (m *SimMarket) QueueCandidates(cs []models.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append([]models.Candidate(nil), cs...)
}

// Quote returns the configured price for code.
func (m *SimMarket) Quote(ctx context.Context, code string) (models.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.prices[code]
	if !ok || price <= 0 {
		return models.Quote{Code: code}, errs.NewQuoteError(code, "no price set", errs.ErrQuoteUnavailable)
	}
	return models.Quote{
		Code:      code,
		Price:     price,
		Volume:    m.volumes[code],
		Timestamp: time.Now(),
	}, nil
}

// Candidates returns the queued candidates regardless of tag.
func (m *SimMarket) Candidates(ctx context.Context, tag string) ([]models.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Candidate, len(m.candidates))
	copy(out, m.candidates)
	return out, nil
}
