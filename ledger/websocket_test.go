package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newHeadsServer(t *testing.T, notifications []string, release <-chan struct{}) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Method != "eth_subscribe" || len(req.Params) != 1 || req.Params[0] != "newHeads" {
			writeResponse(conn, &response{Version: "2.0", ID: req.ID, Error: &RPCError{Code: -32602, Message: "bad params"}})
			return
		}
		writeResponse(conn, &response{Version: "2.0", ID: req.ID, Result: []byte(`"0xsub"`)})
		for _, n := range notifications {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(n))
		}
		<-release
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeResponse(conn *websocket.Conn, resp *response) {
	body, _ := json.Marshal(resp)
	_ = conn.WriteMessage(websocket.TextMessage, body)
}

func TestWebsocketNewHeads(t *testing.T) {
	release := make(chan struct{})
	url := newHeadsServer(t, []string{
		`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xsub","result":{"number":"0x10","timestamp":"0x100"}}}`,
		`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xother","result":{"number":"0x99","timestamp":"0x1"}}}`,
		`not json`,
		`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xsub","result":{"number":"0x11","timestamp":"0x101"}}}`,
	}, release)

	c := NewSplitClient("http://unused.test", url, SplitOptions{})
	defer c.Close()

	ch := make(chan *Header, 4)
	sub, err := c.SubscribeNewHeads(context.Background(), ch)
	require.NoError(t, err)

	require.Equal(t, &Header{Number: 16, Time: 256}, <-ch)
	require.Equal(t, &Header{Number: 17, Time: 257}, <-ch)

	// the server hanging up ends the subscription with an error
	close(release)
	select {
	case err := <-sub.Err():
		require.True(t, errors.Is(err, ErrSubscriptionClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not report the closed connection")
	}
	_, open := <-sub.Err()
	require.False(t, open)
	sub.Unsubscribe()
}

func TestWebsocketUnsubscribeClosesErr(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	url := newHeadsServer(t, nil, release)

	sub, err := newWSSubscriber(url).SubscribeNewHeads(context.Background(), make(chan *Header))
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case err, open := <-sub.Err():
		require.False(t, open)
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Err was not closed after Unsubscribe")
	}
}
