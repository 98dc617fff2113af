// Package chats talks to the internal API of the chats service.
package chats

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/httpclient"
)

type Config struct {
	BaseURL string `validate:"required"`
	// Internal service token
	Token string `validate:"required"`
}

type Agent struct {
	Name        string `json:"agent"`
	Email       string `json:"agent_email"`
	Status      string `json:"status"`
	OpenedRooms int    `json:"opened_rooms"`
	ClosedRooms int    `json:"closed_rooms"`
	Link        *struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	} `json:"link,omitempty"`
}

type agentsResponse struct {
	Next    *string `json:"next"`
	Results []Agent `json:"results"`
}

type Client struct {
	http    *httpclient.Client
	baseURL string
}

func NewClient(config httpclient.Config, chats Config, opts ...httpclient.Option) *Client {
	opts = append(opts[:len(opts):len(opts)], httpclient.WithBearerToken(chats.Token))
	return &Client{
		http:    httpclient.NewClient(config, opts...),
		baseURL: strings.TrimSuffix(chats.BaseURL, "/"),
	}
}

// ListAgents returns the agent status table of a project. params are passed through as filters,
// e.g. sector, queue or agent.
func (c *Client) ListAgents(ctx context.Context, projectUUID string, params url.Values) ([]Agent, error) {
	response, err := c.http.RequestWithRetry(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/v1/internal/dashboard/" + url.PathEscape(projectUUID) + "/agent/",
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	var decoded agentsResponse
	if err := response.DecodeJSON(&decoded); err != nil {
		return nil, errors.Wrap(err, "decoding chats agents")
	}
	if decoded.Results == nil {
		decoded.Results = []Agent{}
	}
	return decoded.Results, nil
}
