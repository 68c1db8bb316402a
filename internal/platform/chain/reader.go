// Package chain reads market timing from the prediction-market contract and
// derives the current on-chain round number.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.OnchainReader = (*Reader)(nil)

// marketTimingABI covers the one view the reader needs. Both outputs are in
// seconds.
const marketTimingABI = `[
	{"name":"getMarketTiming","type":"function","stateMutability":"view",
	 "inputs":[{"name":"marketId","type":"uint256"}],
	 "outputs":[{"name":"createdTime","type":"uint256"},{"name":"roundInterval","type":"uint256"}]}
]`

// Reader derives round numbers from getMarketTiming.
type Reader struct {
	caller   ethereum.ContractCaller
	contract common.Address
	abi      abi.ABI
	now      func() time.Time
}

// NewReader creates a Reader over any contract caller.
func NewReader(caller ethereum.ContractCaller, contract string) (*Reader, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("chain: invalid contract address %q", contract)
	}
	parsed, err := abi.JSON(strings.NewReader(marketTimingABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}
	return &Reader{
		caller:   caller,
		contract: common.HexToAddress(contract),
		abi:      parsed,
		now:      time.Now,
	}, nil
}

// Dial connects to rpcURL and returns a Reader with the client that backs
// it. The caller closes the client.
func Dial(ctx context.Context, rpcURL, contract string) (*Reader, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: dial rpc: %w", err)
	}
	r, err := NewReader(client, contract)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return r, client, nil
}

// Timing is the creation time and round length of a market.
type Timing struct {
	Created  time.Time
	Interval time.Duration
}

// MarketTiming calls getMarketTiming for marketID.
func (r *Reader) MarketTiming(ctx context.Context, marketID int64) (Timing, error) {
	data, err := r.abi.Pack("getMarketTiming", big.NewInt(marketID))
	if err != nil {
		return Timing{}, fmt.Errorf("chain: pack getMarketTiming: %w: %w", domain.ErrOnchainRead, err)
	}
	res, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return Timing{}, fmt.Errorf("chain: call getMarketTiming(%d): %w: %w", marketID, domain.ErrOnchainRead, err)
	}
	out, err := r.abi.Unpack("getMarketTiming", res)
	if err != nil {
		return Timing{}, fmt.Errorf("chain: unpack getMarketTiming(%d): %w: %w", marketID, domain.ErrOnchainRead, err)
	}
	if len(out) != 2 {
		return Timing{}, fmt.Errorf("chain: getMarketTiming(%d) returned %d values: %w", marketID, len(out), domain.ErrOnchainRead)
	}
	created, ok1 := out[0].(*big.Int)
	interval, ok2 := out[1].(*big.Int)
	if !ok1 || !ok2 || !created.IsInt64() || !interval.IsInt64() {
		return Timing{}, fmt.Errorf("chain: getMarketTiming(%d) returned unexpected values: %w", marketID, domain.ErrOnchainRead)
	}
	return Timing{
		Created:  time.Unix(created.Int64(), 0),
		Interval: time.Duration(interval.Int64()) * time.Second,
	}, nil
}

// CurrentRound returns the 1-based round number the market is in now.
func (r *Reader) CurrentRound(ctx context.Context, marketOnchainID int64) (int64, error) {
	t, err := r.MarketTiming(ctx, marketOnchainID)
	if err != nil {
		return 0, err
	}
	return RoundAt(r.now(), t.Created, t.Interval)
}

// RoundAt computes (now - created) / interval + 1 in milliseconds.
func RoundAt(now, created time.Time, interval time.Duration) (int64, error) {
	intervalMs := interval.Milliseconds()
	if intervalMs <= 0 {
		return 0, fmt.Errorf("chain: round interval %s: %w", interval, domain.ErrOnchainRead)
	}
	elapsed := now.UnixMilli() - created.UnixMilli()
	if elapsed < 0 {
		return 0, fmt.Errorf("chain: market created in the future (%s): %w", created.UTC().Format(time.RFC3339), domain.ErrOnchainRead)
	}
	return elapsed/intervalMs + 1, nil
}
