package market

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
	"krx-scalper/pkg/utils"
)

// searchRequest is the frame sent to the condition-search endpoint.
type searchRequest struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
}

// searchResponse is the frame returned for one search request.
type searchResponse struct {
	Type  string `json:"type"`
	Tag   string `json:"tag"`
	Items []struct {
		Code   string  `json:"code"`
		Name   string  `json:"name"`
		Price  float64 `json:"price"`
		Volume int64   `json:"volume"`
	} `json:"items"`
}

// quoteRequest is the frame sent for a single-code quote.
type quoteRequest struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// quoteResponse is the frame returned for one quote request.
type quoteResponse struct {
	Type   string  `json:"type"`
	Code   string  `json:"code"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

// Feed is a websocket client for the quote and condition-search service. It
// connects lazily and reconnects on the next call after a failure.
type Feed struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

var (
	_ CandidateSource = (*Feed)(nil)
	_ QuoteProvider   = (*Feed)(nil)
)

// NewFeed creates a feed client for the given websocket URL.
func NewFeed(url string) *Feed {
	return &Feed{url: url}
}

// Candidates requests one screening pass for tag and returns the matches.
func (f *Feed) Candidates(ctx context.Context, tag string) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureConnLocked(ctx); err != nil {
		return nil, err
	}

	f.setDeadlinesLocked(ctx)

	if err := f.conn.WriteJSON(searchRequest{Type: "search", Tag: tag}); err != nil {
		f.closeLocked()
		return nil, errs.Wrap(errs.ErrConnectionFailed, err.Error())
	}

	_, payload, err := f.conn.ReadMessage()
	if err != nil {
		f.closeLocked()
		return nil, errs.Wrap(errs.ErrConnectionFailed, err.Error())
	}

	return decodeCandidates(payload, tag)
}

// Quote requests the current price for one code.
func (f *Feed) Quote(ctx context.Context, code string) (models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureConnLocked(ctx); err != nil {
		return models.Quote{}, err
	}

	f.setDeadlinesLocked(ctx)

	code = utils.NormalizeCode(code)
	if err := f.conn.WriteJSON(quoteRequest{Type: "quote", Code: code}); err != nil {
		f.closeLocked()
		return models.Quote{}, errs.Wrap(errs.ErrConnectionFailed, err.Error())
	}

	_, payload, err := f.conn.ReadMessage()
	if err != nil {
		f.closeLocked()
		return models.Quote{}, errs.Wrap(errs.ErrConnectionFailed, err.Error())
	}

	var resp quoteResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return models.Quote{}, errs.Wrap(errs.ErrQuoteUnavailable, err.Error())
	}
	if resp.Price <= 0 {
		return models.Quote{}, errs.NewQuoteError(code, "no price in response", errs.ErrQuoteUnavailable)
	}

	return models.Quote{
		Code:      code,
		Price:     resp.Price,
		Volume:    resp.Volume,
		Timestamp: time.Now(),
	}, nil
}

func (f *Feed) setDeadlinesLocked(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		f.conn.SetWriteDeadline(deadline)
		f.conn.SetReadDeadline(deadline)
	} else {
		f.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		f.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	}
}

// decodeCandidates parses one search response frame, normalizing codes and
// dropping items without a usable price.
func decodeCandidates(payload []byte, tag string) ([]models.Candidate, error) {
	var resp searchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errs.Wrap(errs.ErrConnectionFailed, err.Error())
	}

	candidates := make([]models.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Code == "" || item.Price <= 0 {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Code:   utils.NormalizeCode(item.Code),
			Name:   item.Name,
			Price:  item.Price,
			Volume: item.Volume,
			Tag:    tag,
		})
	}
	return candidates, nil
}

func (f *Feed) ensureConnLocked(ctx context.Context) error {
	if f.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return errs.Wrap(errs.ErrConnectionFailed, err.Error())
	}
	f.conn = conn
	return nil
}

func (f *Feed) closeLocked() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

// Close shuts the connection down.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
	return nil
}
