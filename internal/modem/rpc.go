package modem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client talks JSON-RPC 2.0 to a modem daemon over HTTP. One Client maps to
// one daemon session; the worker treats it as the device connection handle.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Kind string `json:"kind"`
	} `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type sendParams struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type deleteParams struct {
	Folder   int `json:"folder"`
	Location int `json:"location"`
}

func (c *Client) Send(ctx context.Context, number, text string) error {
	return c.call(ctx, "send", sendParams{Number: number, Text: text}, nil)
}

func (c *Client) ListInbox(ctx context.Context) ([]InboxMessage, error) {
	var items []InboxMessage
	if err := c.call(ctx, "listInbox", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) Delete(ctx context.Context, folder, location int) error {
	return c.call(ctx, "deleteInbox", deleteParams{Folder: folder, Location: location}, nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "identify", nil, nil)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return &Error{Kind: KindGeneric, Op: method, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindGeneric, Op: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: transportKind(err), Op: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindDevice, Op: method, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: KindPermission, Op: method, Err: fmt.Errorf("daemon rejected request: status %d", resp.StatusCode)}
	default:
		return &Error{Kind: KindGeneric, Op: method, Err: fmt.Errorf("unexpected status %d body=%q", resp.StatusCode, raw)}
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return &Error{Kind: KindGeneric, Op: method, Err: fmt.Errorf("failed to decode json: %w body=%q", err, raw)}
	}
	if rr.Error != nil {
		return &Error{Kind: rpcKind(rr.Error), Op: method, Err: fmt.Errorf("rpc error %d: %s", rr.Error.Code, rr.Error.Message)}
	}

	if result != nil && len(rr.Result) > 0 {
		if err := json.Unmarshal(rr.Result, result); err != nil {
			return &Error{Kind: KindGeneric, Op: method, Err: fmt.Errorf("failed to decode result: %w", err)}
		}
	}
	return nil
}

// transportKind maps HTTP transport failures onto the device taxonomy:
// timeouts stay timeouts, everything connection-level counts as the device
// being unreachable.
func transportKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindDevice
}

func rpcKind(e *rpcError) Kind {
	if e.Data == nil {
		return KindGeneric
	}
	switch e.Data.Kind {
	case "timeout":
		return KindTimeout
	case "device":
		return KindDevice
	case "permission":
		return KindPermission
	default:
		return KindGeneric
	}
}
