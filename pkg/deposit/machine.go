package deposit

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"near-intents/pkg/amount"
	"near-intents/pkg/machine"
	"near-intents/pkg/relay"
)

// MachineState tags the deposit flow's states.
type MachineState string

const (
	StateEditing    MachineState = "editing"
	StateGenerating MachineState = "generating"
	StateReady      MachineState = "ready"
	StateSubmitting MachineState = "submitting"
	StateDone       MachineState = "done"
)

// Ctx is the deposit machine's context.
type Ctx struct {
	OriginAsset      string
	DestinationAsset string
	AmountIn         amount.Amount
	Recipient        string

	Quote          *relay.Quote
	StorageDeposit *big.Int
	MaxSendable    amount.Amount

	TxHash string
	Err    *Error
}

// Begin arms the machine with deposit parameters and starts address
// generation. Re-sending it supersedes a generation still in flight.
type Begin struct {
	OriginAsset      string
	DestinationAsset string
	AmountIn         amount.Amount
	Recipient        string
	Balance          amount.Amount
	GasReserve       amount.Amount
}

// Submit sends the deposit through the configured depositor. Ignored unless
// address generation completed.
type Submit struct {
	Depositor Depositor
}

type generated struct {
	Quote          *relay.Quote
	StorageDeposit *big.Int
}

type generationFailed struct{ Err *Error }
type sent struct{ TxHash string }
type sendFailed struct{ Err *Error }

func (Begin) EventName() string            { return "begin" }
func (Submit) EventName() string           { return "submit" }
func (generated) EventName() string        { return "address-generated" }
func (generationFailed) EventName() string { return "address-generation-failed" }
func (sent) EventName() string             { return "deposit-sent" }
func (sendFailed) EventName() string       { return "deposit-send-failed" }

// Controller owns the deposit machine.
type Controller struct {
	m   *machine.Machine[MachineState, Ctx]
	svc *Service
	log *zap.Logger
}

// NewController builds the machine in editing state.
func NewController(svc *Service, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{svc: svc, log: log}
	c.m = machine.New(StateEditing, Ctx{}, c.transition, log)
	return c
}

// Run drives the machine until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) { c.m.Run(ctx) }

// Send delivers an event.
func (c *Controller) Send(ev machine.Event) { c.m.Send(ev) }

// State returns the current state tag.
func (c *Controller) State() MachineState { return c.m.State() }

// Snapshot returns the machine's current context.
func (c *Controller) Snapshot() Ctx { return c.m.Context() }

func (c *Controller) transition(state MachineState, ctx Ctx, ev machine.Event) machine.Result[MachineState, Ctx] {
	switch e := ev.(type) {

	case Begin:
		if state == StateSubmitting {
			return keep(state, ctx)
		}
		ctx = Ctx{
			OriginAsset:      e.OriginAsset,
			DestinationAsset: e.DestinationAsset,
			AmountIn:         e.AmountIn,
			Recipient:        e.Recipient,
			MaxSendable:      EstimateMaxSendable(e.Balance, e.GasReserve),
		}
		return machine.Result[MachineState, Ctx]{
			State:         StateGenerating,
			Context:       ctx,
			AbortInFlight: true,
			Effects:       []machine.Effect{c.generateEffect(ctx)},
		}

	case generated:
		if state != StateGenerating {
			return keep(state, ctx)
		}
		ctx.Quote = e.Quote
		ctx.StorageDeposit = e.StorageDeposit
		ctx.Err = nil
		return keep(StateReady, ctx)

	case generationFailed:
		if state != StateGenerating {
			return keep(state, ctx)
		}
		ctx.Err = e.Err
		return keep(StateEditing, ctx)

	case Submit:
		if state != StateReady || ctx.Quote == nil {
			return keep(state, ctx)
		}
		return machine.Result[MachineState, Ctx]{
			State:   StateSubmitting,
			Context: ctx,
			Effects: []machine.Effect{c.submitEffect(ctx, e.Depositor)},
		}

	case sent:
		if state != StateSubmitting {
			return keep(state, ctx)
		}
		ctx.TxHash = e.TxHash
		return keep(StateDone, ctx)

	case sendFailed:
		if state != StateSubmitting {
			return keep(state, ctx)
		}
		ctx.Err = e.Err
		return keep(StateReady, ctx)
	}

	return keep(state, ctx)
}

func keep(state MachineState, ctx Ctx) machine.Result[MachineState, Ctx] {
	return machine.Result[MachineState, Ctx]{State: state, Context: ctx}
}

func (c *Controller) generateEffect(ctx Ctx) machine.Effect {
	return func(effectCtx context.Context, emit func(machine.Event)) {
		quote, err := c.svc.GenerateAddress(effectCtx, ctx.OriginAsset, ctx.DestinationAsset, ctx.AmountIn.Value, ctx.Recipient)
		if effectCtx.Err() != nil {
			return
		}
		if err != nil {
			emit(generationFailed{Err: asDepositError(err)})
			return
		}

		storage, err := c.svc.EstimateStorageDeposit(effectCtx, ctx.DestinationAsset)
		if effectCtx.Err() != nil {
			return
		}
		if err != nil {
			emit(generationFailed{Err: asDepositError(err)})
			return
		}
		emit(generated{Quote: quote, StorageDeposit: storage})
	}
}

func (c *Controller) submitEffect(ctx Ctx, depositor Depositor) machine.Effect {
	return func(effectCtx context.Context, emit func(machine.Event)) {
		txHash, err := depositor.SendDeposit(effectCtx, ctx.Quote.DepositAddress, ctx.AmountIn)
		if err != nil {
			emit(sendFailed{Err: &Error{Reason: ReasonSendFailed, Cause: err}})
			return
		}
		if err := c.svc.NotifyDeposit(effectCtx, ctx.Quote.DepositAddress, txHash); err != nil {
			c.log.Warn("deposit sent but relay notification failed", zap.String("tx", txHash))
		}
		emit(sent{TxHash: txHash})
	}
}

func asDepositError(err error) *Error {
	if derr, ok := err.(*Error); ok {
		return derr
	}
	return &Error{Reason: ReasonAddressGeneration, Cause: err}
}
