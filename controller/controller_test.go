package controller

import (
	"bufio"
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"go-validator-pool-sync/model"
	"go-validator-pool-sync/service"
)

type fakeReader struct {
	c    *model.GlobalContext
	busy bool
	err  string
}

func (f *fakeReader) Snapshot() *model.GlobalContext { return f.c }

func (f *fakeReader) View() service.View {
	return service.View{GlobalContext: f.c, Busy: f.busy, LastError: f.err}
}

func newReader() *fakeReader {
	c := model.NewGlobalContext("")
	c.CurrentBlockNumber = 100
	c.StakingEpoch = 5
	model.EnsureTracked(c, []string{"0xA", "0xB"})
	c.Pools[0].MiningAddress = "0xM1"
	c.Pools[0].TotalStake = big.NewInt(1500)
	c.Pools[1].MiningAddress = "0xM2"
	return &fakeReader{c: c}
}

func TestGetContext(t *testing.T) {
	r := newReader()
	r.busy = true
	r.err = "rpc down"
	c := NewContextController(r)

	w := httptest.NewRecorder()
	c.GetContext(w, httptest.NewRequest(http.MethodGet, "/context", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, float64(100), got["currentBlockNumber"])
	require.Equal(t, float64(5), got["stakingEpoch"])
	require.Equal(t, true, got["busy"])
	require.Equal(t, "rpc down", got["lastError"])
	require.Len(t, got["pools"], 2)

	w = httptest.NewRecorder()
	c.GetContext(w, httptest.NewRequest(http.MethodPost, "/context", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetPools(t *testing.T) {
	c := NewContextController(newReader())
	tests := []struct {
		query string
		code  int
		pools []string
	}{
		{"", http.StatusOK, []string{"0xA", "0xB"}},
		{"?address=0xA", http.StatusOK, []string{"0xA"}},
		{"?address=0xM2", http.StatusOK, []string{"0xB"}},
		{"?address=0xC", http.StatusNotFound, nil},
		{"?epoch=5", http.StatusBadRequest, nil},
		{"?address=0xA&epoch=5", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			c.GetPools(w, httptest.NewRequest(http.MethodGet, "/pools"+tt.query, nil))
			require.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusOK {
				return
			}
			var pools []model.Pool
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pools))
			var addrs []string
			for _, p := range pools {
				addrs = append(addrs, p.StakingAddress)
			}
			require.Equal(t, tt.pools, addrs)
		})
	}
}

func TestGetPoolsNormalizesAddress(t *testing.T) {
	r := newReader()
	checksummed := common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed").Hex()
	model.EnsureTracked(r.c, []string{checksummed})
	c := NewContextController(r)

	for _, query := range []string{
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED",
		checksummed,
	} {
		w := httptest.NewRecorder()
		c.GetPools(w, httptest.NewRequest(http.MethodGet, "/pools?address="+query, nil))
		require.Equal(t, http.StatusOK, w.Code, query)
		var pools []model.Pool
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pools))
		require.Len(t, pools, 1)
		require.Equal(t, checksummed, pools[0].StakingAddress)
	}
}

type fakeMode struct {
	historic []uint64
	latest   int
	err      error
}

func (m *fakeMode) ShowHistoric(height uint64) { m.historic = append(m.historic, height) }

func (m *fakeMode) ShowLatest(context.Context) error {
	m.latest++
	return m.err
}

func TestModeController(t *testing.T) {
	mode := &fakeMode{}
	c := NewModeController(mode)

	w := httptest.NewRecorder()
	c.ShowHistoric(w, httptest.NewRequest(http.MethodPost, "/historic?block=1234", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, []uint64{1234}, mode.historic)

	for _, target := range []string{"/historic", "/historic?block=-1", "/historic?block=0x10"} {
		w = httptest.NewRecorder()
		c.ShowHistoric(w, httptest.NewRequest(http.MethodPost, target, nil))
		require.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	w = httptest.NewRecorder()
	c.ShowHistoric(w, httptest.NewRequest(http.MethodGet, "/historic?block=1", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Len(t, mode.historic, 1)

	w = httptest.NewRecorder()
	c.ShowLatest(w, httptest.NewRequest(http.MethodPost, "/latest", nil))
	require.Equal(t, http.StatusAccepted, w.Code)

	mode.err = errors.New("ledger unreachable")
	w = httptest.NewRecorder()
	c.ShowLatest(w, httptest.NewRequest(http.MethodPost, "/latest", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "ledger unreachable")
	require.Equal(t, 2, mode.latest)
}

func TestEventsStream(t *testing.T) {
	notifier := service.NewNotifier()
	c := NewEventsController(notifier, newReader())
	srv := httptest.NewServer(http.HandlerFunc(c.Stream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return notifier.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	notifier.Publish(service.Event{Kind: service.PassFailed, Block: 101, Err: errors.New("boom")})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: failed\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var data eventData
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data))
	require.Equal(t, eventData{Block: 101, Current: 100, LastError: "boom"}, data)

	// the subscription goes away with the client
	cancel()
	require.Eventually(t, func() bool { return notifier.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}
