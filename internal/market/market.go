// Package market defines the engine's external collaborators: quote lookup,
// buy-candidate screening, and external time synchronization.
package market

import (
	"context"

	"krx-scalper/internal/models"
)

// QuoteProvider supplies current prices. A zero-price quote or an error
// wrapping ErrQuoteUnavailable means "unavailable this tick"; callers skip
// the instrument rather than failing.
type QuoteProvider interface {
	Quote(ctx context.Context, code string) (models.Quote, error)
}

// CandidateSource supplies buy candidates for a screening tag.
type CandidateSource interface {
	Candidates(ctx context.Context, tag string) ([]models.Candidate, error)
}
