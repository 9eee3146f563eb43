// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jotline/jotline/internal/logger"
)

// HTTPTokenClient fetches access tokens from the web server's REST surface.
type HTTPTokenClient struct {
	client *resty.Client
	log    *logger.Logger
}

var _ TokenClient = (*HTTPTokenClient)(nil)

// NewHTTPTokenClient returns a token client rooted at baseURL.
func NewHTTPTokenClient(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPTokenClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPTokenClient{client: client, log: log.WithComponent("http")}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// AnonToken requests a fresh anonymous access token.
func (c *HTTPTokenClient) AnonToken(ctx context.Context) (string, error) {
	var body tokenResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&body).
		Post("/tokens/anon")
	if err != nil {
		return "", fmt.Errorf("request anon token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: %s", ErrBadStatus, resp.Status())
	}
	if body.Token == "" {
		return "", fmt.Errorf("anon token: empty response")
	}
	c.log.Debug().Msg("anon token issued")
	return body.Token, nil
}
