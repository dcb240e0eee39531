// Package chain reads credit balances from the token contract and records
// ledger movements (mint, transfer, retire) as mocked transactions.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"carbonmarket-backend/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const erc1155BalanceABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var balanceABI = mustParseABI(erc1155BalanceABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// BalanceCheck is the outcome of an on-chain balance lookup. Known is false
// when the lookup could not be performed; Reason then says why.
type BalanceCheck struct {
	Known   bool
	Balance decimal.Decimal
	Reason  string
}

func unknown(format string, args ...interface{}) BalanceCheck {
	return BalanceCheck{Reason: fmt.Sprintf(format, args...)}
}

// ContractCaller is the subset of the Ethereum RPC used for balance reads.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// DialClient opens an RPC client for the configured endpoint.
func DialClient(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chain rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// Verifier reads ERC-1155 balances. A nil Caller makes every check unknown.
type Verifier struct {
	Caller          ContractCaller
	DefaultContract string
	Decimals        int32
	Timeout         time.Duration
}

// Balance looks up how many units of credit's token owner holds.
func (v *Verifier) Balance(ctx context.Context, owner string, credit *domain.CarbonCredit) BalanceCheck {
	if v == nil || v.Caller == nil {
		return unknown("no chain rpc configured")
	}
	if !common.IsHexAddress(owner) {
		return unknown("owner %q is not an EVM address", owner)
	}
	contract := credit.ContractAddress
	if contract == "" {
		contract = v.DefaultContract
	}
	if !common.IsHexAddress(contract) {
		return unknown("credit %d has no token contract", credit.ID)
	}
	tokenID, ok := ParseTokenID(credit.TokenID)
	if !ok {
		return unknown("credit %d has no token id", credit.ID)
	}

	data, err := balanceABI.Pack("balanceOf", common.HexToAddress(owner), tokenID)
	if err != nil {
		return unknown("encode balanceOf: %v", err)
	}
	to := common.HexToAddress(contract)

	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}
	out, err := v.Caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return unknown("balanceOf call: %v", err)
	}
	values, err := balanceABI.Unpack("balanceOf", out)
	if err != nil || len(values) != 1 {
		return unknown("decode balanceOf: %v", err)
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return unknown("decode balanceOf: unexpected %T", values[0])
	}
	return BalanceCheck{Known: true, Balance: decimal.NewFromBigInt(raw, -v.Decimals)}
}

// ParseTokenID accepts decimal or 0x-prefixed hex token ids.
func ParseTokenID(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}
