// Package vtex reads orders from the VTEX order management API.
package vtex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/httpclient"
)

const (
	ordersPath     = "/api/oms/pvt/orders"
	ordersPerPage  = 100
	vtexTimeFormat = "2006-01-02T15:04:05.000Z"
)

type Credentials struct {
	// Store domain, e.g. mystore.vtexcommercestable.com.br
	Domain   string `validate:"required"`
	AppKey   string `validate:"required"`
	AppToken string `validate:"required"`
}

type Order struct {
	OrderID      string    `json:"orderId"`
	Status       string    `json:"status"`
	CreationDate time.Time `json:"creationDate"`
	// In cents
	TotalValue float64 `json:"totalValue"`
}

type ordersPage struct {
	List   []Order `json:"list"`
	Paging struct {
		Total       int `json:"total"`
		Pages       int `json:"pages"`
		CurrentPage int `json:"currentPage"`
		PerPage     int `json:"perPage"`
	} `json:"paging"`
}

type OrdersQuery struct {
	Start     time.Time
	End       time.Time
	UTMSource string
}

type Client struct {
	http     *httpclient.Client
	maxPages int
	scheme   string
}

// NewClient reads at most maxPages pages of orders per query. VTEX itself stops paginating at 30.
func NewClient(http *httpclient.Client, maxPages int) *Client {
	if maxPages <= 0 {
		maxPages = 30
	}
	return &Client{http: http, maxPages: maxPages, scheme: "https"}
}

func (c *Client) ListOrders(ctx context.Context, credentials Credentials, query OrdersQuery) ([]Order, error) {
	orders := []Order{}
	for page := 1; page <= c.maxPages; page++ {
		params := url.Values{}
		params.Set("f_creationDate", fmt.Sprintf("creationDate:[%s TO %s]",
			query.Start.UTC().Format(vtexTimeFormat), query.End.UTC().Format(vtexTimeFormat)))
		if query.UTMSource != "" {
			params.Set("utm_source", query.UTMSource)
		}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(ordersPerPage))

		response, err := c.http.RequestWithRetry(ctx, httpclient.Request{
			Method: http.MethodGet,
			URL:    c.scheme + "://" + credentials.Domain + ordersPath,
			Query:  params,
			Headers: http.Header{
				"X-VTEX-API-AppKey":   {credentials.AppKey},
				"X-VTEX-API-AppToken": {credentials.AppToken},
			},
		})
		if err != nil {
			return nil, err
		}
		var decoded ordersPage
		if err := response.DecodeJSON(&decoded); err != nil {
			return nil, errors.Wrap(err, "decoding vtex orders")
		}
		orders = append(orders, decoded.List...)
		if page >= decoded.Paging.Pages || len(decoded.List) == 0 {
			break
		}
	}
	return orders, nil
}
