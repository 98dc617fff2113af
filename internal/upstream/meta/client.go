// Package meta reads WhatsApp message template analytics from the Meta Graph API.
package meta

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/httpclient"
)

var templateMetricTypes = []string{"SENT", "DELIVERED", "READ", "CLICKED"}

type Config struct {
	BaseURL     string `validate:"required"`
	AccessToken string `validate:"required"`
}

type TemplateMetrics struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Clicked   int `json:"clicked"`
}

type clickedButton struct {
	Type          string `json:"type"`
	ButtonContent string `json:"button_content"`
	Count         int    `json:"count"`
}

type analyticsResponse struct {
	Data []struct {
		Granularity string `json:"granularity"`
		DataPoints  []struct {
			TemplateID string          `json:"template_id"`
			Start      int64           `json:"start"`
			End        int64           `json:"end"`
			Sent       int             `json:"sent"`
			Delivered  int             `json:"delivered"`
			Read       int             `json:"read"`
			Clicked    []clickedButton `json:"clicked"`
		} `json:"data_points"`
	} `json:"data"`
}

type Client struct {
	http    *httpclient.Client
	baseURL string
}

// NewClient builds a client authenticating with the system user access token in config.
func NewClient(config httpclient.Config, meta Config, opts ...httpclient.Option) *Client {
	opts = append(opts[:len(opts):len(opts)], httpclient.WithBearerToken(meta.AccessToken))
	return &Client{
		http:    httpclient.NewClient(config, opts...),
		baseURL: strings.TrimSuffix(meta.BaseURL, "/"),
	}
}

// TemplateAnalytics totals daily analytics for templateIDs on the business account wabaID.
func (c *Client) TemplateAnalytics(ctx context.Context, wabaID string, templateIDs []string, start time.Time, end time.Time) (TemplateMetrics, error) {
	metricTypes, _ := json.Marshal(templateMetricTypes)
	ids, err := json.Marshal(templateIDs)
	if err != nil {
		return TemplateMetrics{}, errors.WithStack(err)
	}
	response, err := c.http.RequestWithRetry(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/" + wabaID + "/template_analytics",
		Query: map[string][]string{
			"start":        {strconv.FormatInt(start.Unix(), 10)},
			"end":          {strconv.FormatInt(end.Unix(), 10)},
			"granularity":  {"DAILY"},
			"metric_types": {string(metricTypes)},
			"template_ids": {string(ids)},
		},
	})
	if err != nil {
		return TemplateMetrics{}, err
	}
	var decoded analyticsResponse
	if err := response.DecodeJSON(&decoded); err != nil {
		return TemplateMetrics{}, errors.Wrap(err, "decoding template analytics")
	}

	totals := TemplateMetrics{}
	for _, series := range decoded.Data {
		for _, point := range series.DataPoints {
			totals.Sent += point.Sent
			totals.Delivered += point.Delivered
			totals.Read += point.Read
			for _, button := range point.Clicked {
				totals.Clicked += button.Count
			}
		}
	}
	return totals, nil
}
