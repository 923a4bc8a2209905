// Package ledger is the boundary to the remote ledger: point-in-time JSON-RPC
// reads, new head notifications and typed views over the hbbft system contracts.
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when the ledger does not know the requested block.
	ErrNotFound = errors.New("not found")
	// ErrSubscriptionUnsupported is returned by clients whose transport cannot
	// deliver notifications.
	ErrSubscriptionUnsupported = errors.New("subscriptions not supported by transport")
	// ErrSubscriptionClosed is delivered when the remote side ends a subscription.
	ErrSubscriptionClosed = errors.New("subscription closed by remote")
)

// BlockRef selects the state a read is evaluated against: the latest block or
// a pinned height.
type BlockRef struct {
	height uint64
	pinned bool
}

// Latest refers to the most recent block known to the remote.
func Latest() BlockRef { return BlockRef{} }

// AtHeight pins a read to the given block height.
func AtHeight(h uint64) BlockRef { return BlockRef{height: h, pinned: true} }

// IsLatest reports whether the ref is not pinned.
func (b BlockRef) IsLatest() bool { return !b.pinned }

// Height returns the pinned height, zero for Latest.
func (b BlockRef) Height() uint64 { return b.height }

// String renders the JSON-RPC block tag.
func (b BlockRef) String() string {
	if !b.pinned {
		return "latest"
	}
	return hexutil.EncodeUint64(b.height)
}

// Header is the block metadata the synchronizer records.
type Header struct {
	Number uint64
	Time   uint64
}

// Subscription is a live feed of notifications. Err delivers at most one
// error and is closed once the subscription ends.
type Subscription interface {
	Err() <-chan error
	Unsubscribe()
}

// Client is the raw ledger boundary. Implementations must answer pinned and
// latest reads with identically shaped results.
type Client interface {
	CallContract(ctx context.Context, to string, data []byte, at BlockRef) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, at BlockRef) (*Header, error)
	BalanceAt(ctx context.Context, addr string, at BlockRef) (*big.Int, error)
	SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (Subscription, error)
	Close()
}

// CallError is a failed remote query. It covers transport failures, reverts
// and undecodable results alike.
type CallError struct {
	Contract string
	Method   string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s.%s: %v", e.Contract, e.Method, e.Err)
}

// Unwrap returns the underlying failure.
func (e *CallError) Unwrap() error { return e.Err }

// Cause implements the pkg/errors causer.
func (e *CallError) Cause() error { return e.Err }

// caller performs one JSON-RPC request.
type caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// headSubscriber opens newHeads subscriptions.
type headSubscriber interface {
	SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (Subscription, error)
	Close()
}

type rpcHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

func (h *rpcHeader) header() *Header {
	return &Header{Number: uint64(h.Number), Time: uint64(h.Timestamp)}
}

type callArgs struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// RPCClient implements Client on top of a JSON-RPC caller and a head
// subscriber. Both the provider and the split RPC/websocket variants are
// RPCClients; only their transports differ.
type RPCClient struct {
	caller caller
	heads  headSubscriber
}

var _ Client = (*RPCClient)(nil)

// CallContract executes eth_call against the given state.
func (c *RPCClient) CallContract(ctx context.Context, to string, data []byte, at BlockRef) ([]byte, error) {
	var out hexutil.Bytes
	args := callArgs{To: common.HexToAddress(to), Data: data}
	if err := c.caller.CallContext(ctx, &out, "eth_call", args, at.String()); err != nil {
		return nil, err
	}
	return out, nil
}

// BlockNumber returns the latest block height.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.caller.CallContext(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// HeaderByNumber returns height and timestamp of the referenced block.
func (c *RPCClient) HeaderByNumber(ctx context.Context, at BlockRef) (*Header, error) {
	var h *rpcHeader
	if err := c.caller.CallContext(ctx, &h, "eth_getBlockByNumber", at.String(), false); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.Wrapf(ErrNotFound, "block %s", at)
	}
	return h.header(), nil
}

// BalanceAt returns the native balance of addr.
func (c *RPCClient) BalanceAt(ctx context.Context, addr string, at BlockRef) (*big.Int, error) {
	var b hexutil.Big
	if err := c.caller.CallContext(ctx, &b, "eth_getBalance", common.HexToAddress(addr), at.String()); err != nil {
		return nil, err
	}
	return (*big.Int)(&b), nil
}

// SubscribeNewHeads streams new block headers into ch.
func (c *RPCClient) SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (Subscription, error) {
	if c.heads == nil {
		return nil, ErrSubscriptionUnsupported
	}
	return c.heads.SubscribeNewHeads(ctx, ch)
}

// Close releases the transports.
func (c *RPCClient) Close() {
	c.caller.Close()
	if c.heads != nil {
		c.heads.Close()
	}
}
