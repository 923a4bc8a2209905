package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const wsHandshakeTimeout = 10 * time.Second

// wsSubscriber opens one websocket connection per newHeads subscription.
type wsSubscriber struct {
	url    string
	dialer *websocket.Dialer
}

func newWSSubscriber(url string) *wsSubscriber {
	return &wsSubscriber{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
	}
}

type subscriptionParams struct {
	Subscription string    `json:"subscription"`
	Result       rpcHeader `json:"result"`
}

func (s *wsSubscriber) SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (Subscription, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", s.url)
	}

	deadline := time.Now().Add(wsHandshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	body, err := json.Marshal(newRequest(1, "eth_subscribe", []interface{}{"newHeads"}))
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "send eth_subscribe")
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "read eth_subscribe response")
	}
	var msg response
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "decode eth_subscribe response")
	}
	var id string
	if err := decodeResult(&msg, &id); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "eth_subscribe")
	}

	_ = conn.SetWriteDeadline(time.Time{})
	_ = conn.SetReadDeadline(time.Time{})

	sub := &wsSubscription{
		id:   id,
		conn: conn,
		errc: make(chan error, 1),
		quit: make(chan struct{}),
	}
	go sub.loop(ch)
	return sub, nil
}

func (s *wsSubscriber) Close() {}

type wsSubscription struct {
	id   string
	conn *websocket.Conn
	errc chan error
	quit chan struct{}
	once sync.Once
}

func (s *wsSubscription) loop(ch chan<- *Header) {
	defer close(s.errc)
	defer s.conn.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(errors.Wrap(ErrSubscriptionClosed, err.Error()))
			return
		}
		var msg response
		if err := json.Unmarshal(data, &msg); err != nil || msg.Method != "eth_subscription" {
			continue
		}
		var params subscriptionParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.fail(errors.Wrap(err, "decode newHeads notification"))
			return
		}
		if params.Subscription != s.id {
			continue
		}
		select {
		case ch <- params.Result.header():
		case <-s.quit:
			return
		}
	}
}

func (s *wsSubscription) fail(err error) {
	select {
	case <-s.quit:
	default:
		s.errc <- err
	}
}

func (s *wsSubscription) Err() <-chan error { return s.errc }

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.quit)
		s.conn.Close()
	})
}
