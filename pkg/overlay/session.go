package overlay

import (
	"context"
	"sync"
	"time"

	"idledata/pkg/auth"
	"idledata/pkg/logger"
	"idledata/pkg/market"
	"idledata/pkg/models"
)

// DefaultDebounce is how long Observe waits for mutations to settle
const DefaultDebounce = 100 * time.Millisecond

// HistoryFetcher fetches one market history series
type HistoryFetcher interface {
	MarketHistory(ctx context.Context, hashedID string, tier int, series models.Series) (*models.MarketHistory, error)
}

// ClientFactory returns a fetcher authenticated with apiKey
type ClientFactory func(apiKey string) HistoryFetcher

// Update is what the session asks the renderer to show
type Update struct {
	Selection Selection
	// State is empty when Summary holds real data, otherwise one of the
	// market.State* placeholders.
	State   string
	Summary market.Summary
}

// Renderer displays updates. Render is called from timer goroutines.
type Renderer interface {
	Render(update Update)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(update Update)

func (f RendererFunc) Render(update Update) { f(update) }

// Load fetches the listings history of sel and summarises it
func Load(ctx context.Context, fetcher HistoryFetcher, sel Selection, loc *time.Location) (market.Summary, error) {
	h, err := fetcher.MarketHistory(ctx, sel.ItemID, sel.Tier, models.SeriesListings)
	if err != nil {
		return market.Summary{}, err
	}
	return market.Summarize(h, loc), nil
}

// Session tracks the inspected item of one page and refreshes the price
// overlay when it changes
type Session struct {
	newClient ClientFactory
	renderer  Renderer
	debounce  time.Duration
	location  *time.Location
	logger    logger.Logger

	// renderMu orders the currency check and the render of one update
	renderMu sync.Mutex

	mu      sync.Mutex
	apiKey  string
	current *Selection
	cancel  context.CancelFunc
	timer   *time.Timer
	pending string
}

// Options configures a Session
type Options struct {
	NewClient ClientFactory
	Renderer  Renderer
	APIKey    string
	Debounce  time.Duration
	Location  *time.Location
	Logger    logger.Logger
}

// NewSession creates a session. A zero Debounce uses DefaultDebounce.
func NewSession(opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Session{
		newClient: opts.NewClient,
		renderer:  opts.Renderer,
		debounce:  opts.Debounce,
		location:  opts.Location,
		apiKey:    opts.APIKey,
		logger:    logger.OrGlobal(opts.Logger).WithField("component", "overlay"),
	}
}

// SetAPIKey replaces the key used for later fetches
func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
	s.logger.Info("API key updated")
}

// Watch applies credential events until ctx is done or events is closed
func (s *Session) Watch(ctx context.Context, events <-chan auth.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case auth.EventUpdated:
				s.SetAPIKey(ev.APIKey)
			case auth.EventDeleted:
				s.SetAPIKey("")
			}
		}
	}
}

// Observe records a page mutation exposing href and evaluates it once no
// further mutation arrives within the debounce interval
func (s *Session) Observe(ctx context.Context, href string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = href
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		target := s.pending
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.Evaluate(ctx, target)
	})
}

// Stop cancels a pending debounced evaluation
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// ClearSelection forgets the current item so the next evaluation always renders
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.cancelFetch()
}

// cancelFetch aborts the fetch of the previous evaluation. Callers hold s.mu.
func (s *Session) cancelFetch() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Current returns the selection last rendered, if any
func (s *Session) Current() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Selection{}, false
	}
	return *s.current, true
}

// Evaluate renders the overlay for href unless it shows the same item and
// tier as the last evaluation. Failures are logged and rendered as
// placeholder rows; they are never returned.
func (s *Session) Evaluate(ctx context.Context, href string) {
	sel, err := ParseInspectURL(href)
	if err != nil {
		s.logger.WithError(err).Debug("Could not extract item info")
		return
	}

	s.mu.Lock()
	if s.current != nil && *s.current == sel {
		s.mu.Unlock()
		s.logger.DebugWithFields("Same item and tier, skipping update", map[string]interface{}{
			"item": sel.ItemID,
			"tier": sel.Tier,
		})
		return
	}
	s.cancelFetch()
	cur := &sel
	s.current = cur
	key := s.apiKey
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	log := s.logger.WithFields(map[string]interface{}{"item": sel.ItemID, "tier": sel.Tier})
	log.Info("New item detected")

	if key == "" || s.newClient == nil {
		s.renderCurrent(cur, Update{Selection: sel, State: market.StateNoAPIKey, Summary: market.StateSummary(market.StateNoAPIKey)})
		return
	}

	summary, err := Load(fetchCtx, s.newClient(key), sel, s.location)
	if err != nil {
		if s.renderCurrent(cur, Update{Selection: sel, State: market.StateError, Summary: market.StateSummary(market.StateError)}) {
			log.WithError(err).Error("Error fetching market data")
		}
		return
	}
	s.renderCurrent(cur, Update{Selection: sel, Summary: summary})
}

// renderCurrent renders update only while cur is still the current
// selection. A newer evaluation or a cleared selection supersedes it.
func (s *Session) renderCurrent(cur *Selection, update Update) bool {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	current := s.current == cur
	s.mu.Unlock()
	if !current {
		s.logger.DebugWithFields("Selection changed during fetch, dropping update", map[string]interface{}{
			"item": update.Selection.ItemID,
			"tier": update.Selection.Tier,
		})
		return false
	}
	if s.renderer != nil {
		s.renderer.Render(update)
	}
	return true
}
