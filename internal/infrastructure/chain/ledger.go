package chain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Hash returns the 0x-prefixed Keccak-256 of the parts joined by '|'.
func Hash(parts ...string) string {
	return crypto.Keccak256Hash([]byte(strings.Join(parts, "|"))).Hex()
}

// MintReceipt describes freshly tokenized credits.
type MintReceipt struct {
	TokenID         string
	ContractAddress string
	ChainID         int64
	TxHash          string
}

// Ledger records token movements. Nothing is broadcast: every call returns a
// deterministic-looking transaction hash that is unique per call.
type Ledger struct {
	ContractAddress string
	ChainID         int64
	now             func() time.Time
}

func NewLedger(contract string, chainID int64) *Ledger {
	return &Ledger{ContractAddress: contract, ChainID: chainID, now: time.Now}
}

func (l *Ledger) txHash(kind string, parts ...string) string {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	all := append([]string{kind, strconv.FormatInt(l.ChainID, 10), l.ContractAddress}, parts...)
	all = append(all, now().UTC().Format(time.RFC3339Nano), uuid.NewString())
	return Hash(all...)
}

// Mint issues amount credits of the project's token to owner. The token id is
// the project id.
func (l *Ledger) Mint(ctx context.Context, owner string, projectID uint, amount decimal.Decimal) (MintReceipt, error) {
	if err := ctx.Err(); err != nil {
		return MintReceipt{}, err
	}
	tokenID := strconv.FormatUint(uint64(projectID), 10)
	tx := l.txHash("mint", owner, tokenID, amount.String())
	log.Info().Str("tx_hash", tx).Str("owner", owner).Str("token_id", tokenID).Str("amount", amount.String()).Msg("credits minted")
	return MintReceipt{TokenID: tokenID, ContractAddress: l.ContractAddress, ChainID: l.ChainID, TxHash: tx}, nil
}

// Transfer moves amount of tokenID from one holder to another.
func (l *Ledger) Transfer(ctx context.Context, from, to, tokenID string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.txHash("transfer", from, to, tokenID, amount.String()), nil
}

// Retire burns amount of tokenID held by owner.
func (l *Ledger) Retire(ctx context.Context, owner, tokenID string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.txHash("retire", owner, tokenID, amount.String()), nil
}
