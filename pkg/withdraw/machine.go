package withdraw

import (
	"context"
	"time"

	"go.uber.org/zap"

	"near-intents/pkg/amount"
	"near-intents/pkg/machine"
	"near-intents/pkg/tokens"
)

// MachineState tags the withdrawal flow's top-level states.
type MachineState string

const (
	StateEditingIdle      MachineState = "editing.idle"
	StateEditingPreparing MachineState = "editing.preparing"
	StateResetting        MachineState = "resetting"
	StateSubmitting       MachineState = "submitting"
)

// ReprepareDebounce is how long an ok-but-stale preparation sits before it is
// refreshed in the background.
const ReprepareDebounce = 10 * time.Second

// WatchInterval is how often a status watcher polls settlement.
const WatchInterval = 5 * time.Second

// Submitter signs and broadcasts a prepared withdrawal, returning the
// settlement transaction hash.
type Submitter interface {
	Submit(ctx context.Context, form Form, prep *Preparation) (txHash string, err error)
}

// StatusChecker polls the settlement status of a recorded submission.
type StatusChecker interface {
	Check(ctx context.Context, sub Submission) (SubmissionStatus, error)
}

type preparerIface interface {
	Prepare(ctx context.Context, form Form, balances map[string]amount.Amount) (*Preparation, error)
}

type pollerPauser interface {
	Pause()
}

// Ctx is the machine's context: the form, the latest balances, the standing
// preparation and the watcher list. Watchers accumulate per successful
// submission and are never removed for the life of the machine.
type Ctx struct {
	Form     Form
	Balances map[string]amount.Amount

	Prep    *Preparation
	PrepErr *PreparationError

	Watchers []string
	Statuses map[string]SubmissionStatus

	LastTxHash string
	SubmitErr  error
}

// Machine-internal events.

type resetDone struct{}
type reprepareTick struct{}
type preparationDone struct{ Prep *Preparation }
type preparationFailed struct{ Err *PreparationError }

func (resetDone) EventName() string         { return "reset-done" }
func (reprepareTick) EventName() string     { return "reprepare-tick" }
func (preparationDone) EventName() string   { return "preparation-done" }
func (preparationFailed) EventName() string { return "preparation-failed" }

// External events.

// BalancesUpdated delivers a fresh balance snapshot from the tracker.
type BalancesUpdated struct {
	Balances map[string]amount.Amount
}

// Submit asks the machine to sign and broadcast the standing preparation. It
// is ignored unless a preparation completed successfully: submission fails
// closed.
type Submit struct{}

type submissionResult struct {
	ID     string
	TxHash string
	Err    error
}

// WatchUpdate reports a settlement status change for one submission.
type WatchUpdate struct {
	ID     string
	Status SubmissionStatus
}

func (BalancesUpdated) EventName() string  { return "balances-updated" }
func (Submit) EventName() string           { return "submit" }
func (submissionResult) EventName() string { return "submission-result" }
func (WatchUpdate) EventName() string      { return "watch-update" }

// Deps are the machine's collaborators.
type Deps struct {
	Preparer  preparerIface
	Poller    pollerPauser
	Submitter Submitter
	Checker   StatusChecker
	History   *History
	Families  tokens.Families
	Log       *zap.Logger
}

// Controller owns the withdrawal machine and its collaborators.
type Controller struct {
	m      *machine.Machine[MachineState, Ctx]
	deps   Deps
	runCtx context.Context
}

// NewController builds the machine in editing.idle around an initial form.
func NewController(deps Deps, initial Form) *Controller {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	c := &Controller{deps: deps}
	c.m = machine.New(StateEditingIdle, Ctx{
		Form:     initial,
		Statuses: make(map[string]SubmissionStatus),
	}, c.transition, deps.Log)
	return c
}

// Run drives the machine until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	c.m.Run(ctx)
}

// Send delivers an event (form events, BalancesUpdated, Submit).
func (c *Controller) Send(ev machine.Event) {
	c.m.Send(ev)
}

// State returns the current machine state.
func (c *Controller) State() MachineState {
	return c.m.State()
}

// Snapshot returns the machine's current context.
func (c *Controller) Snapshot() Ctx {
	return c.m.Context()
}

func (c *Controller) transition(state MachineState, ctx Ctx, ev machine.Event) machine.Result[MachineState, Ctx] {
	switch e := ev.(type) {

	case UpdateToken, UpdateBlockchain, UpdateAmount, UpdateRecipient, UpdateDestinationMemo, UpdateMinReceived:
		if state == StateSubmitting {
			// Edits during submission are dropped; the submitted preparation
			// must not shift under the signer.
			return keep(state, ctx)
		}
		next, changed, err := Apply(ctx.Form, ev, c.deps.Families)
		if err != nil {
			// No deployment on the target chain means the token list itself
			// is wrong. Fail fast.
			panic(err)
		}
		ctx.Form = next
		if len(changed) == 0 {
			return keep(state, ctx)
		}
		return c.reset(ctx)

	case SetCEXConfirmation:
		next, _, _ := Apply(ctx.Form, ev, c.deps.Families)
		ctx.Form = next
		return keep(state, ctx)

	case resetDone:
		if state != StateResetting {
			return keep(state, ctx)
		}
		if ctx.Form.Ready() && ctx.Balances != nil {
			return c.startPreparing(ctx)
		}
		return keep(StateEditingIdle, ctx)

	case preparationDone:
		if state != StateEditingPreparing {
			return keep(state, ctx)
		}
		ctx.Prep = e.Prep
		ctx.PrepErr = nil
		return machine.Result[MachineState, Ctx]{
			State:   StateEditingIdle,
			Context: ctx,
			Effects: []machine.Effect{debounceEffect()},
		}

	case preparationFailed:
		if state != StateEditingPreparing {
			return keep(state, ctx)
		}
		ctx.Prep = nil
		ctx.PrepErr = e.Err
		return keep(StateEditingIdle, ctx)

	case reprepareTick:
		// Background refresh of an ok-but-aging preparation.
		if state == StateEditingIdle && ctx.Prep != nil && ctx.Form.Ready() {
			return c.startPreparing(ctx)
		}
		return keep(state, ctx)

	case BalancesUpdated:
		ctx.Balances = e.Balances
		if state == StateSubmitting {
			return keep(state, ctx)
		}
		if !c.quoteStillAffordable(ctx) {
			// The standing quote assumed balances we no longer have; a full
			// re-preparation is the only safe answer.
			return c.reset(ctx)
		}
		if state == StateEditingIdle && ctx.Prep == nil && ctx.PrepErr == nil && ctx.Form.Ready() {
			return c.startPreparing(ctx)
		}
		return keep(state, ctx)

	case Submit:
		if state != StateEditingIdle || ctx.Prep == nil || !ctx.Form.Ready() {
			return keep(state, ctx)
		}
		ctx.SubmitErr = nil
		return machine.Result[MachineState, Ctx]{
			State:   StateSubmitting,
			Context: ctx,
			Effects: []machine.Effect{c.submitEffect(ctx.Form, ctx.Prep)},
		}

	case submissionResult:
		if state != StateSubmitting {
			return keep(state, ctx)
		}
		ctx.SubmitErr = e.Err
		ctx.LastTxHash = e.TxHash
		effects := []machine.Effect(nil)
		if e.Err == nil {
			ctx.Prep = nil
			if e.ID != "" {
				ctx.Watchers = append(ctx.Watchers, e.ID)
				ctx.Statuses[e.ID] = StatusPending
				if c.deps.Checker != nil {
					effects = append(effects, c.watchEffect(e.ID))
				}
			}
		}
		return machine.Result[MachineState, Ctx]{
			State:   StateEditingIdle,
			Context: ctx,
			Effects: effects,
		}

	case WatchUpdate:
		ctx.Statuses[e.ID] = e.Status
		return keep(state, ctx)
	}

	return keep(state, ctx)
}

func keep(state MachineState, ctx Ctx) machine.Result[MachineState, Ctx] {
	return machine.Result[MachineState, Ctx]{State: state, Context: ctx}
}

// reset enters the transitional resetting state: the in-flight preparation and
// quote poll are aborted before anything new starts, never raced.
func (c *Controller) reset(ctx Ctx) machine.Result[MachineState, Ctx] {
	ctx.Prep = nil
	ctx.PrepErr = nil
	return machine.Result[MachineState, Ctx]{
		State:         StateResetting,
		Context:       ctx,
		AbortInFlight: true,
		Effects: []machine.Effect{
			func(_ context.Context, emit func(machine.Event)) {
				if c.deps.Poller != nil {
					c.deps.Poller.Pause()
				}
				emit(resetDone{})
			},
		},
	}
}

func (c *Controller) startPreparing(ctx Ctx) machine.Result[MachineState, Ctx] {
	form := ctx.Form
	balances := ctx.Balances
	return machine.Result[MachineState, Ctx]{
		State:         StateEditingPreparing,
		Context:       ctx,
		AbortInFlight: true,
		Effects: []machine.Effect{
			func(effectCtx context.Context, emit func(machine.Event)) {
				prep, err := c.deps.Preparer.Prepare(effectCtx, form, balances)
				if effectCtx.Err() != nil {
					return
				}
				if err != nil {
					if perr, ok := err.(*PreparationError); ok {
						emit(preparationFailed{Err: perr})
					}
					return
				}
				emit(preparationDone{Prep: prep})
			},
		},
	}
}

// quoteStillAffordable re-validates the standing swap quotes against fresh
// balances: every quoted leg's origin must still hold at least its slice.
func (c *Controller) quoteStillAffordable(ctx Ctx) bool {
	if ctx.Prep == nil || len(ctx.Prep.SwapLegs) == 0 {
		return true
	}
	total, found := tokens.TotalBalance(ctx.Form.TokenIn, ctx.Balances)
	if !found || amount.Cmp(total, ctx.Form.Amount) < 0 {
		return false
	}
	for _, leg := range ctx.Prep.SwapLegs {
		bal, ok := ctx.Balances[leg.OriginAsset]
		if !ok || amount.Cmp(bal, leg.AmountIn) < 0 {
			return false
		}
	}
	return true
}

func debounceEffect() machine.Effect {
	return func(ctx context.Context, emit func(machine.Event)) {
		timer := time.NewTimer(ReprepareDebounce)
		defer timer.Stop()
		select {
		case <-timer.C:
			emit(reprepareTick{})
		case <-ctx.Done():
		}
	}
}

func (c *Controller) submitEffect(form Form, prep *Preparation) machine.Effect {
	return func(ctx context.Context, emit func(machine.Event)) {
		txHash, err := c.deps.Submitter.Submit(ctx, form, prep)
		if err != nil {
			emit(submissionResult{Err: err})
			return
		}

		id := ""
		if c.deps.History != nil {
			recorded, herr := c.deps.History.Record(Submission{
				AssetID:   form.TokenOut.AssetID,
				Chain:     form.Blockchain,
				Recipient: form.Recipient,
				Amount:    amount.Format(prep.Received),
				TxHash:    txHash,
			})
			if herr != nil {
				c.deps.Log.Warn("failed to record submission", zap.Error(herr))
			} else {
				id = recorded
			}
		}
		emit(submissionResult{ID: id, TxHash: txHash})
	}
}

// watchEffect polls settlement for one submission until it reaches a terminal
// status. Watchers are not tied to the effect generation: they live for the
// machine's lifetime and survive preparation aborts.
func (c *Controller) watchEffect(id string) machine.Effect {
	return func(_ context.Context, _ func(machine.Event)) {
		ctx := c.runCtx
		if ctx == nil {
			ctx = context.Background()
		}
		ticker := time.NewTicker(WatchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			sub, err := c.deps.History.Get(id)
			if err != nil {
				return
			}
			status, err := c.deps.Checker.Check(ctx, *sub)
			if err != nil {
				c.deps.Log.Debug("status check failed", zap.String("id", id), zap.Error(err))
				continue
			}
			if status != sub.Status {
				if err := c.deps.History.UpdateStatus(id, status, ""); err != nil {
					c.deps.Log.Warn("failed to update submission status", zap.Error(err))
				}
				c.m.Send(WatchUpdate{ID: id, Status: status})
			}
			if status == StatusSettled || status == StatusFailed {
				return
			}
		}
	}
}
