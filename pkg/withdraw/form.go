package withdraw

import (
	"fmt"
	"strings"

	"near-intents/pkg/amount"
	"near-intents/pkg/chains"
	"near-intents/pkg/machine"
	"near-intents/pkg/tokens"
)

// CEXConfirmation is the tri-state acknowledgement that the recipient address
// is not a centralized-exchange deposit address (or that the user accepts the
// risk). Chains without the hazard stay at not_required.
type CEXConfirmation string

const (
	CEXNotRequired  CEXConfirmation = "not_required"
	CEXNotConfirmed CEXConfirmation = "not_confirmed"
	CEXConfirmed    CEXConfirmation = "confirmed"
)

// Field names a form field for change notifications.
type Field string

const (
	FieldToken       Field = "token"
	FieldBlockchain  Field = "blockchain"
	FieldAmount      Field = "amount"
	FieldRecipient   Field = "recipient"
	FieldMemo        Field = "memo"
	FieldCEX         Field = "cexConfirmation"
	FieldMinReceived Field = "minReceivedAmount"
)

// Form holds the user-entered withdrawal parameters plus the derived
// destination token. TokenOut is always re-derived from TokenIn and the target
// blockchain; it is never set independently.
type Form struct {
	SenderID string

	TokenIn    tokens.Token
	TokenOut   tokens.BaseToken
	Deployment tokens.Deployment
	Blockchain string

	AmountInput string
	Amount      amount.Amount
	AmountParse amount.ParseResult

	Recipient    string
	RecipientErr error

	Memo    string
	MemoErr error

	CEX         CEXConfirmation
	MinReceived *amount.Amount
}

// Form events. Each mutation is a discrete named event; there is no direct
// external write into the form.

type UpdateToken struct{ Token tokens.Token }
type UpdateBlockchain struct{ Blockchain string }
type UpdateAmount struct{ Input string }
type UpdateRecipient struct{ Recipient string }
type UpdateDestinationMemo struct{ Memo string }
type SetCEXConfirmation struct{ Value CEXConfirmation }
type UpdateMinReceived struct{ Amount amount.Amount }

func (UpdateToken) EventName() string           { return "update-token" }
func (UpdateBlockchain) EventName() string      { return "update-blockchain" }
func (UpdateAmount) EventName() string          { return "update-amount" }
func (UpdateRecipient) EventName() string       { return "update-recipient" }
func (UpdateDestinationMemo) EventName() string { return "update-destination-memo" }
func (SetCEXConfirmation) EventName() string    { return "cex-confirmation-changed" }
func (UpdateMinReceived) EventName() string     { return "update-min-received-amount" }

// NewForm seeds a form from an initial token and target chain, resolving the
// destination token immediately.
func NewForm(senderID string, initial tokens.Token, blockchain string, families tokens.Families) (Form, error) {
	f := Form{
		SenderID:   senderID,
		TokenIn:    initial,
		Blockchain: blockchain,
		CEX:        CEXNotRequired,
	}
	if err := f.resolveTokenOut(families); err != nil {
		return Form{}, err
	}
	return f, nil
}

func (f *Form) resolveTokenOut(families tokens.Families) error {
	tokenOut, dep, err := tokens.ResolveTokenOut(f.Blockchain, f.TokenIn, families)
	if err != nil {
		return err
	}
	f.TokenOut = tokenOut
	f.Deployment = dep
	return nil
}

// Apply reduces one event into a new form snapshot, returning the list of
// changed fields so the caller can react selectively. Token and blockchain
// changes re-resolve tokenOut; a family with no deployment on the target chain
// is a token-list construction bug and comes back as a hard error.
func Apply(f Form, ev machine.Event, families tokens.Families) (Form, []Field, error) {
	switch e := ev.(type) {
	case UpdateToken:
		f.TokenIn = e.Token
		if err := f.resolveTokenOut(families); err != nil {
			return f, nil, err
		}
		f.reparseAmount()
		f.revalidateRecipient()
		return f, []Field{FieldToken}, nil

	case UpdateBlockchain:
		f.Blockchain = e.Blockchain
		if err := f.resolveTokenOut(families); err != nil {
			return f, nil, err
		}
		// Memo and the hyperliquid override are only meaningful for the
		// chain they were entered against.
		f.Memo = ""
		f.MemoErr = nil
		f.MinReceived = nil
		f.revalidateRecipient()
		return f, []Field{FieldBlockchain}, nil

	case UpdateAmount:
		f.AmountInput = e.Input
		f.reparseAmount()
		return f, []Field{FieldAmount}, nil

	case UpdateRecipient:
		f.Recipient = e.Recipient
		f.revalidateRecipient()
		return f, []Field{FieldRecipient}, nil

	case UpdateDestinationMemo:
		if !chains.RequiresMemo(f.Blockchain) {
			// Forced empty on ledgers without a tag concept.
			f.Memo = ""
			f.MemoErr = nil
			return f, []Field{FieldMemo}, nil
		}
		f.Memo = e.Memo
		f.MemoErr = chains.ValidateMemo(f.Blockchain, e.Memo)
		return f, []Field{FieldMemo}, nil

	case SetCEXConfirmation:
		f.CEX = e.Value
		return f, []Field{FieldCEX}, nil

	case UpdateMinReceived:
		a := e.Amount.Clone()
		f.MinReceived = &a
		return f, []Field{FieldMinReceived}, nil
	}

	return f, nil, fmt.Errorf("form: unhandled event %q", ev.EventName())
}

func (f *Form) reparseAmount() {
	f.Amount, f.AmountParse = amount.Parse(f.AmountInput, f.TokenOut.Decimals)
}

func (f *Form) revalidateRecipient() {
	if f.Recipient == "" {
		f.RecipientErr = nil
		return
	}
	if f.Blockchain == chains.NearIntents {
		// Internal transfers settle on the intents ledger, but the recipient
		// is still a NEAR account, and sending to yourself is a no-op we
		// refuse up front.
		if !chains.IsNearAccountID(f.Recipient) {
			f.RecipientErr = fmt.Errorf("recipient is not a valid NEAR account id")
			return
		}
		if InternalUserID(f.Recipient) == InternalUserID(f.SenderID) {
			f.RecipientErr = fmt.Errorf("cannot transfer to your own account")
			return
		}
		f.RecipientErr = nil
		return
	}

	chain := f.Blockchain
	if chain == chains.Hyperliquid {
		chain = chains.HyperliquidRouteChain(f.TokenIn.TokenSymbol())
	}
	f.RecipientErr = chains.ValidateRecipient(chain, f.Recipient)
}

// InternalUserID derives the intents-ledger account id for an auth handle.
// NEAR account ids and hex addresses are case-insensitive on the ledger, so
// both sides of a self-transfer check go through this transform.
func InternalUserID(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// Ready reports whether the form is complete enough to prepare a withdrawal.
func (f Form) Ready() bool {
	return f.AmountParse == amount.ParseOK &&
		!f.Amount.IsZero() &&
		f.Recipient != "" &&
		f.RecipientErr == nil &&
		f.MemoErr == nil &&
		f.CEX != CEXNotConfirmed
}

// BalanceCheck classifies the amount input against an available balance. The
// unparseable arm is distinct so malformed input reads as "not yet checkable"
// rather than as either boolean.
type BalanceCheck int

const (
	BalanceUnknown BalanceCheck = iota
	BalanceSufficient
	BalanceInsufficient
)

// CheckInsufficientBalance compares a raw amount string against a balance at
// the balance's scale.
func CheckInsufficientBalance(input string, balance amount.Amount) BalanceCheck {
	parsed, res := amount.Parse(input, balance.Decimals)
	if res != amount.ParseOK {
		return BalanceUnknown
	}
	if amount.Cmp(parsed, balance) > 0 {
		return BalanceInsufficient
	}
	return BalanceSufficient
}
