package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// NewProviderClient dials a single provider endpoint (http, ws or ipc) used
// for both calls and head subscriptions. Subscriptions need a transport with
// notification support.
func NewProviderClient(ctx context.Context, url string) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &RPCClient{caller: c, heads: &providerHeads{client: c}}, nil
}

type providerHeads struct {
	client *rpc.Client
}

func (p *providerHeads) SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (Subscription, error) {
	raw := make(chan *rpcHeader)
	sub, err := p.client.EthSubscribe(ctx, raw, "newHeads")
	if err != nil {
		if errors.Is(err, rpc.ErrNotificationsUnsupported) {
			return nil, ErrSubscriptionUnsupported
		}
		return nil, errors.Wrap(err, "eth_subscribe newHeads")
	}
	fs := &forwardedSub{
		inner: sub,
		errc:  make(chan error, 1),
		quit:  make(chan struct{}),
	}
	go fs.loop(raw, ch)
	return fs, nil
}

// Close is a no-op: the rpc client is closed as the caller.
func (p *providerHeads) Close() {}

// forwardedSub converts raw rpc headers into Headers.
type forwardedSub struct {
	inner *rpc.ClientSubscription
	errc  chan error
	quit  chan struct{}
	once  sync.Once
}

func (s *forwardedSub) loop(raw <-chan *rpcHeader, ch chan<- *Header) {
	defer close(s.errc)
	for {
		select {
		case h := <-raw:
			select {
			case ch <- h.header():
			case <-s.quit:
				return
			}
		case err, ok := <-s.inner.Err():
			if !ok || err == nil {
				err = ErrSubscriptionClosed
			}
			select {
			case <-s.quit:
			default:
				s.errc <- err
			}
			return
		case <-s.quit:
			return
		}
	}
}

func (s *forwardedSub) Err() <-chan error { return s.errc }

func (s *forwardedSub) Unsubscribe() {
	s.once.Do(func() {
		close(s.quit)
		s.inner.Unsubscribe()
	})
}
