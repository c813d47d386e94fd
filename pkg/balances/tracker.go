package balances

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"near-intents/pkg/amount"
	"near-intents/pkg/tokens"
)

// Source fetches balances for a set of base tokens, keyed by asset id.
type Source interface {
	Balances(ctx context.Context, owner string, list []tokens.BaseToken) (map[string]amount.Amount, error)
}

// State is the tracker's lifecycle tag.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateCompleted State = "completed"
)

// Params identifies one balance request: whose balances, for which token.
type Params struct {
	Owner string
	Token tokens.Token
}

func (p Params) key() string {
	ids := make([]string, 0)
	if p.Token != nil {
		for _, t := range p.Token.Underlying() {
			ids = append(ids, t.AssetID)
		}
	}
	sort.Strings(ids)
	return p.Owner + "|" + strings.Join(ids, ",")
}

// Update is the tracker's published result. Failures are carried as values,
// never thrown past the tracker.
type Update struct {
	Params   Params
	Balances map[string]amount.Amount
	Err      error
}

// Tracker maintains the token-id to balance mapping for the widget. It holds
// the last request's parameters: refreshing with identical parameters keeps
// the displayed balance (no flicker), while a request for a different
// token/owner clears it immediately so stale numbers are never shown.
type Tracker struct {
	source Source
	log    *zap.Logger

	mu         sync.Mutex
	state      State
	params     *Params
	displayed  map[string]amount.Amount
	generation uint64
	cancel     context.CancelFunc

	updates chan Update
}

// NewTracker creates an idle tracker over the given source.
func NewTracker(source Source, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		source:  source,
		log:     log,
		state:   StateIdle,
		updates: make(chan Update, 16),
	}
}

// Updates is the stream of fetch results, one per completed refresh.
func (t *Tracker) Updates() <-chan Update {
	return t.updates
}

// State returns the current lifecycle tag.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Displayed returns the balances as of the last completed refresh, or nil
// when cleared.
func (t *Tracker) Displayed() map[string]amount.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.displayed
}

// Refresh starts a fetch for the given parameters, superseding any fetch
// still in flight.
func (t *Tracker) Refresh(ctx context.Context, params Params) {
	t.mu.Lock()
	if t.params == nil || t.params.key() != params.key() {
		// Different token or owner: clear immediately.
		t.displayed = nil
	}
	t.params = &params
	t.state = StateFetching
	t.generation++
	gen := t.generation
	if t.cancel != nil {
		t.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.fetch(fetchCtx, gen, params)
}

func (t *Tracker) fetch(ctx context.Context, gen uint64, params Params) {
	var list []tokens.BaseToken
	if params.Token != nil {
		list = params.Token.Underlying()
	}

	balances, err := t.source.Balances(ctx, params.Owner, list)

	t.mu.Lock()
	if gen != t.generation {
		// Superseded while in flight; discard.
		t.mu.Unlock()
		return
	}
	t.state = StateCompleted
	if err == nil {
		t.displayed = balances
	} else {
		t.log.Warn("balance fetch failed", zap.Error(err))
	}
	t.mu.Unlock()

	select {
	case t.updates <- Update{Params: params, Balances: balances, Err: err}:
	default:
		t.log.Debug("dropping balance update, consumer not keeping up")
	}
}
