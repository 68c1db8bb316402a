package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

const testContract = "0x00000000000000000000000000000000000000a1"

type fakeCaller struct {
	reader  *Reader
	created int64
	step    int64
	err     error
	lastTo  common.Address
	lastID  *big.Int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastTo = *msg.To
	method := f.reader.abi.Methods["getMarketTiming"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	f.lastID = args[0].(*big.Int)
	return method.Outputs.Pack(big.NewInt(f.created), big.NewInt(f.step))
}

func newTestReader(t *testing.T, caller *fakeCaller, now time.Time) *Reader {
	t.Helper()
	r, err := NewReader(caller, testContract)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	caller.reader = r
	r.now = func() time.Time { return now }
	return r
}

func TestCurrentRound(t *testing.T) {
	caller := &fakeCaller{created: 1_700_000_000, step: 3600}
	r := newTestReader(t, caller, time.Unix(1_700_000_000+2*3600+5, 0))

	got, err := r.CurrentRound(context.Background(), 7)
	if err != nil {
		t.Fatalf("CurrentRound: %v", err)
	}
	if got != 3 {
		t.Errorf("expected round 3, got %d", got)
	}
	if caller.lastTo != common.HexToAddress(testContract) || caller.lastID.Int64() != 7 {
		t.Errorf("unexpected call to=%s id=%v", caller.lastTo.Hex(), caller.lastID)
	}
}

func TestCurrentRoundCallFailure(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection refused")}
	r := newTestReader(t, caller, time.Now())
	if _, err := r.CurrentRound(context.Background(), 1); !errors.Is(err, domain.ErrOnchainRead) {
		t.Errorf("expected ErrOnchainRead, got %v", err)
	}
}

func TestRoundAt(t *testing.T) {
	created := time.Unix(1000, 0)
	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		want     int64
		wantErr  bool
	}{
		{name: "at creation", now: created, interval: time.Minute, want: 1},
		{name: "just before boundary", now: created.Add(time.Minute - time.Millisecond), interval: time.Minute, want: 1},
		{name: "on boundary", now: created.Add(time.Minute), interval: time.Minute, want: 2},
		{name: "many rounds", now: created.Add(10*time.Minute + time.Second), interval: time.Minute, want: 11},
		{name: "zero interval", now: created, interval: 0, wantErr: true},
		{name: "before creation", now: created.Add(-time.Second), interval: time.Minute, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoundAt(tt.now, created, tt.interval)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrOnchainRead) {
					t.Fatalf("expected ErrOnchainRead, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RoundAt: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestNewReaderRejectsBadAddress(t *testing.T) {
	if _, err := NewReader(&fakeCaller{}, "not-an-address"); err == nil {
		t.Error("expected error for invalid address")
	}
}
