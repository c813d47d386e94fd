package chains

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	base58sol "github.com/mr-tron/base58"
)

var (
	nearAccountPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)
	stellarPattern     = regexp.MustCompile(`^G[A-Z2-7]{55}$`)
	xrpPattern         = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)
)

// ValidateRecipient checks a recipient address against the target chain's
// address format. The near_intents pseudo-chain requires a valid NEAR account
// id even though settlement happens internally.
func ValidateRecipient(chain, recipient string) error {
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	switch FamilyOf(chain) {
	case FamilyNear:
		if !IsNearAccountID(recipient) {
			return fmt.Errorf("invalid NEAR account id: %s", recipient)
		}
	case FamilyEVM:
		if err := validateEVMAddress(recipient); err != nil {
			return err
		}
	case FamilySolana:
		raw, err := base58sol.Decode(recipient)
		if err != nil || len(raw) != 32 {
			return fmt.Errorf("invalid Solana address: %s", recipient)
		}
	case FamilyBitcoin:
		if !isBitcoinAddress(recipient) {
			return fmt.Errorf("invalid Bitcoin address: %s", recipient)
		}
	case FamilyTon:
		if !isTonAddress(recipient) {
			return fmt.Errorf("invalid TON address: %s", recipient)
		}
	case FamilyStellar:
		if !stellarPattern.MatchString(recipient) {
			return fmt.Errorf("invalid Stellar address: %s", recipient)
		}
	case FamilyTron:
		if !isTronAddress(recipient) {
			return fmt.Errorf("invalid Tron address: %s", recipient)
		}
	case FamilyXRP:
		if !xrpPattern.MatchString(recipient) {
			return fmt.Errorf("invalid XRP Ledger address: %s", recipient)
		}
	default:
		return fmt.Errorf("unsupported chain: %s", chain)
	}
	return nil
}

// IsNearAccountID checks the NEAR account-id grammar (2-64 chars, dot-separated
// lowercase alphanumeric parts; implicit 64-char hex accounts also match).
func IsNearAccountID(s string) bool {
	if len(s) < 2 || len(s) > 64 {
		return false
	}
	return nearAccountPattern.MatchString(s)
}

func validateEVMAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid EVM address: %s", addr)
	}
	// Mixed-case addresses must carry a valid EIP-55 checksum.
	body := strings.TrimPrefix(addr, "0x")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if common.HexToAddress(addr).Hex() != addr {
			return fmt.Errorf("invalid EVM address checksum: %s", addr)
		}
	}
	return nil
}

func isBitcoinAddress(addr string) bool {
	// Legacy P2PKH / P2SH.
	if _, version, err := base58.CheckDecode(addr); err == nil {
		return version == 0x00 || version == 0x05
	}
	// Segwit v0 / taproot v1.
	hrp, data, err := bech32.Decode(strings.ToLower(addr))
	if err != nil || hrp != "bc" || len(data) < 1 {
		return false
	}
	version := data[0]
	prog, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return false
	}
	switch version {
	case 0:
		return len(prog) == 20 || len(prog) == 32
	case 1:
		return len(prog) == 32
	default:
		return false
	}
}

func isTonAddress(addr string) bool {
	// User-friendly form: 36 bytes (tag, workchain, 32-byte hash, crc16)
	// in base64 or base64url.
	raw, err := base64.URLEncoding.DecodeString(addr)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(addr)
	}
	if err != nil || len(raw) != 36 {
		return false
	}
	tag := raw[0] &^ 0x80 // strip the test-only bit
	return tag == 0x11 || tag == 0x51
}

func isTronAddress(addr string) bool {
	raw, version, err := base58.CheckDecode(addr)
	if err != nil {
		return false
	}
	return version == 0x41 && len(raw) == 20
}

// ValidateMemo checks a destination memo for the target chain. XRP Ledger
// destination tags are unsigned 32-bit integers; all other chains must not
// carry a memo.
func ValidateMemo(chain, memo string) error {
	if memo == "" {
		return nil
	}
	if !RequiresMemo(chain) {
		return fmt.Errorf("destination memo is not supported on %s", chain)
	}
	if _, err := strconv.ParseUint(memo, 10, 32); err != nil {
		return fmt.Errorf("invalid destination tag %q: must be an unsigned 32-bit integer", memo)
	}
	return nil
}
