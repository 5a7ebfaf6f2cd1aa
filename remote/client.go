package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zeu5/ur-rl-env/types"
)

type ClientConfig struct {
	// host:port or a full http URL
	Address string
	Timeout time.Duration
}

var ErrRemote = errors.New("remote session error")

// Client is a Session backed by a Server over HTTP.
// Requests are not retried; failures surface to the caller.
type Client struct {
	base   string
	client *http.Client
	id     string
}

var _ types.Session = &Client{}

// Dial connects to the session server and fetches its session id
func Dial(ctx context.Context, config ClientConfig) (*Client, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := config.Address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	c := &Client{
		base: strings.TrimSuffix(base, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   5 * time.Second,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	info := SessionInfo{}
	if err := c.do(ctx, http.MethodGet, routeSession, nil, &info); err != nil {
		return nil, err
	}
	c.id = info.ID
	return c, nil
}

// ID is the identifier the server assigned to its session
func (c *Client) ID() string {
	return c.id
}

func (c *Client) Reset(ctx context.Context) (types.TimeStep, error) {
	t := types.TimeStep{}
	err := c.do(ctx, http.MethodPost, routeReset, nil, &t)
	return t, err
}

func (c *Client) Step(ctx context.Context, action []float32) (types.TimeStep, error) {
	t := types.TimeStep{}
	err := c.do(ctx, http.MethodPost, routeStep, StepRequest{Action: action}, &t)
	return t, err
}

func (c *Client) ObservationSpec(ctx context.Context) (map[string]types.NativeSpec, error) {
	resp := ObservationSpecResponse{}
	if err := c.do(ctx, http.MethodGet, routeObservationSpec, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Specs, nil
}

func (c *Client) ActionSpec(ctx context.Context) (types.NativeSpec, error) {
	resp := ActionSpecResponse{}
	err := c.do(ctx, http.MethodGet, routeActionSpec, nil, &resp)
	return resp.Spec, err
}

// Close asks the server to release the robot and drops idle connections
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
	defer cancel()
	err := c.do(ctx, http.MethodPost, routeClose, nil, nil)
	c.client.CloseIdleConnections()
	return err
}

func (c *Client) do(ctx context.Context, method, route string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshaling request: %w", method, route, err)
		}
		reader = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+route, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w", method, route, err)
	}
	if resp.StatusCode != http.StatusOK {
		e := errorResponse{}
		if json.Unmarshal(bs, &e) == nil && e.Error != "" {
			return fmt.Errorf("%w: %s %s: %s (%d)", ErrRemote, method, route, e.Error, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s %s: status %d", ErrRemote, method, route, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bs, out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, route, err)
	}
	return nil
}
