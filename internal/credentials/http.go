package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPIssuer delegates credential minting to a remote token service.
//
// POST {base}/tokens {"channel_name","uid","role","expire_seconds"} -> {"token"}
type HTTPIssuer struct {
	client *resty.Client
}

type tokenRequest struct {
	ChannelName   string `json:"channel_name"`
	UID           uint32 `json:"uid"`
	Role          Role   `json:"role"`
	ExpireSeconds int64  `json:"expire_seconds"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func NewHTTPIssuer(baseURL string, timeout time.Duration) (*HTTPIssuer, error) {
	if baseURL == "" {
		return nil, errors.New("credentials: issuer url is required")
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPIssuer{client: c}, nil
}

func (i *HTTPIssuer) Issue(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return "", err
	}

	var out tokenResponse
	resp, err := i.client.R().
		SetContext(ctx).
		SetBody(tokenRequest{
			ChannelName:   req.Channel,
			UID:           req.UID,
			Role:          req.Role,
			ExpireSeconds: int64(req.TTL / time.Second),
		}).
		SetResult(&out).
		Post("/tokens")
	if err != nil {
		return "", fmt.Errorf("credentials: token service: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("credentials: token service returned %d", resp.StatusCode())
	}
	if out.Token == "" {
		return "", errors.New("credentials: token service returned empty token")
	}
	return out.Token, nil
}
