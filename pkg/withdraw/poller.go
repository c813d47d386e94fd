package withdraw

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"

	"near-intents/pkg/relay"
)

// Quoter is the slice of the relay client the poller needs.
type Quoter interface {
	RequestQuote(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error)
}

// QuoteInput is the swap leg the poller keeps priced while armed.
type QuoteInput struct {
	OriginAsset      string
	DestinationAsset string
	AmountIn         *big.Int
	SignerID         string
}

// QuoteEvent carries one polling result. Err and Quote are mutually exclusive.
type QuoteEvent struct {
	Input QuoteInput
	Quote *relay.Quote
	Err   error
}

func (QuoteEvent) EventName() string { return "quote-result" }

// DefaultPollInterval is how often an armed poller refreshes its quote.
const DefaultPollInterval = 15 * time.Second

type pollerCmdKind int

const (
	cmdSetInput pollerCmdKind = iota
	cmdPause
)

type pollerCmd struct {
	kind  pollerCmdKind
	input QuoteInput
	reply chan QuoteEvent
}

type pollerResult struct {
	gen uint64
	ev  QuoteEvent
}

// Poller is the long-lived quote actor: one per editing session. While armed
// with input it re-requests dry quotes on an interval and publishes each
// result. Pausing or replacing the input supersedes any request still in
// flight; its result is discarded rather than delivered out of order.
type Poller struct {
	quoter   Quoter
	interval time.Duration
	log      *zap.Logger

	cmds chan pollerCmd
	out  chan QuoteEvent
}

// NewPoller creates a paused poller. Run must be started for it to do work.
func NewPoller(quoter Quoter, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		quoter:   quoter,
		interval: interval,
		log:      log,
		cmds:     make(chan pollerCmd, 8),
		out:      make(chan QuoteEvent, 8),
	}
}

// Events is the stream of quote results while the poller is armed.
func (p *Poller) Events() <-chan QuoteEvent {
	return p.out
}

// SetInput arms the poller with a new swap leg, superseding the previous one.
func (p *Poller) SetInput(in QuoteInput) {
	p.cmds <- pollerCmd{kind: cmdSetInput, input: in}
}

// Pause disarms the poller. In-flight results are discarded.
func (p *Poller) Pause() {
	p.cmds <- pollerCmd{kind: cmdPause}
}

// Once arms the poller with the given input and blocks until exactly one
// result for that input arrives. Polling continues afterwards, keeping the
// quote fresh for the rest of the editing session.
func (p *Poller) Once(ctx context.Context, in QuoteInput) (*relay.Quote, error) {
	reply := make(chan QuoteEvent, 1)
	select {
	case p.cmds <- pollerCmd{kind: cmdSetInput, input: in, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ev := <-reply:
		return ev.Quote, ev.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drives the poller until ctx is cancelled. All state lives in this loop;
// no other goroutine touches it.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		input   *QuoteInput
		reply   chan QuoteEvent
		gen     uint64
		results = make(chan pollerResult)
	)

	fetch := func() {
		in := *input
		g := gen
		go func() {
			quote, err := p.quoter.RequestQuote(ctx, relay.QuoteRequest{
				OriginAsset:      in.OriginAsset,
				DestinationAsset: in.DestinationAsset,
				AmountIn:         in.AmountIn,
				Recipient:        in.SignerID,
				RefundTo:         in.SignerID,
				Dry:              true,
			})
			select {
			case results <- pollerResult{gen: g, ev: QuoteEvent{Input: in, Quote: quote, Err: err}}:
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-p.cmds:
			gen++
			reply = nil
			switch cmd.kind {
			case cmdPause:
				input = nil
			case cmdSetInput:
				in := cmd.input
				input = &in
				reply = cmd.reply
				fetch()
			}

		case r := <-results:
			if r.gen != gen {
				p.log.Debug("discarding superseded quote",
					zap.String("origin", r.ev.Input.OriginAsset))
				continue
			}
			if reply != nil {
				reply <- r.ev
				reply = nil
			}
			select {
			case p.out <- r.ev:
			default:
				p.log.Debug("dropping quote event, consumer not keeping up")
			}

		case <-ticker.C:
			if input != nil {
				fetch()
			}
		}
	}
}
