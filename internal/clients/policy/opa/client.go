// Package opa adapts an Open Policy Agent instance to the policy gate port.
package opa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.PolicyClient = (*Client)(nil)

const defaultPolicyPath = "/v1/data/orders/allow"

// Client queries OPA's data API for authorization decisions. On OPA failure
// it falls open or closed depending on configuration; an unreachable policy
// engine must never crash the order path.
type Client struct {
	baseURL    string
	policyPath string
	failOpen   bool
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithPolicyPath overrides the data API path queried for decisions.
func WithPolicyPath(path string) Option {
	return func(c *Client) {
		if strings.TrimSpace(path) != "" {
			c.policyPath = path
		}
	}
}

// WithFailClosed makes OPA failures deny instead of allow.
func WithFailClosed() Option {
	return func(c *Client) {
		c.failOpen = false
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds the client. An empty baseURL yields a disabled gate that allows
// everything.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		policyPath: defaultPolicyPath,
		failOpen:   true,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

type dataRequest struct {
	Input ports.AuthzRequest `json:"input"`
}

type dataResponse struct {
	Result json.RawMessage `json:"result"`
}

type decisionResult struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

// Authorize posts the request as OPA input and interprets the result, which
// may be a bare boolean or an object with allow/reason fields.
func (c *Client) Authorize(ctx context.Context, req ports.AuthzRequest) (ports.AuthzDecision, error) {
	if !c.Enabled() {
		return ports.AuthzDecision{Allowed: true, Reason: "policy gate not configured"}, nil
	}
	encoded, err := json.Marshal(dataRequest{Input: req})
	if err != nil {
		return c.fallback(ctx, req.Action, err), nil
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.policyPath, bytes.NewReader(encoded))
	if err != nil {
		return c.fallback(ctx, req.Action, err), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.fallback(ctx, req.Action, err), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.fallback(ctx, req.Action, fmt.Errorf("opa returned %s", resp.Status)), nil
	}
	var body dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return c.fallback(ctx, req.Action, err), nil
	}
	return interpretResult(body.Result), nil
}

// interpretResult accepts both `true` and `{"allow": true, "reason": "..."}`
// result shapes. An undefined result denies.
func interpretResult(result json.RawMessage) ports.AuthzDecision {
	if len(result) == 0 {
		return ports.AuthzDecision{Allowed: false, Reason: "policy result undefined"}
	}
	var allowed bool
	if err := json.Unmarshal(result, &allowed); err == nil {
		return ports.AuthzDecision{Allowed: allowed}
	}
	var decision decisionResult
	if err := json.Unmarshal(result, &decision); err == nil {
		return ports.AuthzDecision{Allowed: decision.Allow, Reason: decision.Reason}
	}
	return ports.AuthzDecision{Allowed: false, Reason: "unrecognized policy result"}
}

func (c *Client) fallback(ctx context.Context, action string, cause error) ports.AuthzDecision {
	if c.failOpen {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "policy engine unreachable, failing open",
			slog.String("action", action), slog.String("error", cause.Error()))
		return ports.AuthzDecision{Allowed: true, Reason: fmt.Sprintf("policy error (fail-open): %v", cause)}
	}
	c.logger.LogAttrs(ctx, slog.LevelWarn, "policy engine unreachable, failing closed",
		slog.String("action", action), slog.String("error", cause.Error()))
	return ports.AuthzDecision{Allowed: false, Reason: fmt.Sprintf("policy error (fail-closed): %v", cause)}
}

// Status probes OPA's health endpoint.
func (c *Client) Status(ctx context.Context) ports.GatewayStatus {
	if !c.Enabled() {
		return ports.GatewayStatus{State: ports.GatewayDisabled, Message: "policy gate not configured"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ports.GatewayStatus{State: ports.GatewayUnhealthy, Message: resp.Status}
	}
	return ports.GatewayStatus{State: ports.GatewayHealthy, Message: "opa is operational"}
}
