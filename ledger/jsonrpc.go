package ledger

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// request is a JSON-RPC 2.0 request object.
type request struct {
	Version string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// response is a JSON-RPC 2.0 response object. Notifications reuse it with
// Method and Params set instead of ID and Result.
type response struct {
	Version string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Result  jsoniter.RawMessage `json:"result,omitempty"`
	Error   *RPCError           `json:"error,omitempty"`
	Method  string              `json:"method,omitempty"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
}

// RPCError is an error object returned by the remote node, e.g. a revert.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newRequest(id uint64, method string, args []interface{}) *request {
	if args == nil {
		args = []interface{}{}
	}
	return &request{Version: "2.0", ID: id, Method: method, Params: args}
}

func decodeResult(msg *response, result interface{}) error {
	if msg.Error != nil {
		return msg.Error
	}
	if result == nil || len(msg.Result) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Result, result)
}

// SplitOptions configures the split RPC/websocket client.
type SplitOptions struct {
	// Timeout bounds a single HTTP round trip when the context has no earlier deadline.
	Timeout time.Duration
	// RPS is the client-side request rate limit.
	RPS int
}

// httpCaller sends JSON-RPC requests over fasthttp.
type httpCaller struct {
	url     string
	client  *fasthttp.Client
	limiter *rate.Limiter
	timeout time.Duration
	nextID  atomic.Uint64
}

func newHTTPCaller(url string, client *fasthttp.Client, opts SplitOptions) *httpCaller {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 50
	}
	if client == nil {
		client = &fasthttp.Client{
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 30 * time.Second,
		}
	}
	return &httpCaller{
		url:     url,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		timeout: opts.Timeout,
	}
}

func (c *httpCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s: rate limit", method)
	}
	body, err := json.Marshal(newRequest(c.nextID.Inc(), method, args))
	if err != nil {
		return errors.Wrapf(err, "%s: encode request", method)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return errors.Wrapf(err, "%s: http", method)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return errors.Errorf("%s: unexpected http status %d", method, code)
	}

	var msg response
	if err := json.Unmarshal(resp.Body(), &msg); err != nil {
		return errors.Wrapf(err, "%s: decode response", method)
	}
	return decodeResult(&msg, result)
}

func (c *httpCaller) Close() {
	c.client.CloseIdleConnections()
}

// NewSplitClient returns a client that sends calls to rpcURL over HTTP and
// follows new heads over a websocket connection to wsURL.
func NewSplitClient(rpcURL, wsURL string, opts SplitOptions) *RPCClient {
	c := &RPCClient{caller: newHTTPCaller(rpcURL, nil, opts)}
	if wsURL != "" {
		c.heads = newWSSubscriber(wsURL)
	}
	return c
}
