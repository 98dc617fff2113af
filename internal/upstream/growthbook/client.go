// Package growthbook reads feature flag definitions from GrowthBook and evaluates them locally.
package growthbook

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/cache"
	"github.com/weni-ai/insights/internal/common/httpclient"
	"github.com/weni-ai/insights/internal/common/observability"
)

const cacheName = "growthbook"

type Config struct {
	Host      string `validate:"required"`
	ClientKey string `validate:"required"`
	Cache     cache.TierConfig
}

type Feature struct {
	DefaultValue interface{} `json:"defaultValue"`
	Rules        []Rule      `json:"rules,omitempty"`
}

// Rule either forces a value or runs an experiment over Variations. Rules are evaluated
// in order and the first one that applies wins.
type Rule struct {
	Condition map[string]interface{} `json:"condition,omitempty"`
	Force     interface{}            `json:"force,omitempty"`
	// Share of users, in [0, 1], the rule is rolled out to
	Coverage      *float64    `json:"coverage,omitempty"`
	Range         *[2]float64 `json:"range,omitempty"`
	HashAttribute string      `json:"hashAttribute,omitempty"`
	HashVersion   int         `json:"hashVersion,omitempty"`
	Seed          string      `json:"seed,omitempty"`
	// Experiment rules only
	Key        string        `json:"key,omitempty"`
	Variations []interface{} `json:"variations,omitempty"`
	Weights    []float64     `json:"weights,omitempty"`
}

type featuresResponse struct {
	Status   int                `json:"status"`
	Features map[string]Feature `json:"features"`
}

type Client struct {
	http   *httpclient.Client
	config Config
	cache  *cache.CacheAside[map[string]Feature]
}

func NewClient(http *httpclient.Client, store cache.Store, config Config, recorder observability.Recorder) *Client {
	return &Client{
		http:   http,
		config: config,
		cache:  cache.NewCacheAside[map[string]Feature](cacheName, store, config.Cache, recorder),
	}
}

// GetFeatures returns every feature definition, served from cache when possible.
func (c *Client) GetFeatures(ctx context.Context) (map[string]Feature, error) {
	return c.cache.GetValue(ctx, c.config.ClientKey, c.fetchFeatures)
}

func (c *Client) fetchFeatures(ctx context.Context) (map[string]Feature, error) {
	response, err := c.http.RequestWithRetry(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/api/features/%s", strings.TrimSuffix(c.config.Host, "/"), c.config.ClientKey),
	})
	if err != nil {
		return nil, err
	}
	var decoded featuresResponse
	if err := response.DecodeJSON(&decoded); err != nil {
		return nil, errors.Wrap(err, "decoding growthbook features")
	}
	if decoded.Features == nil {
		decoded.Features = map[string]Feature{}
	}
	return decoded.Features, nil
}

// GetActiveFeatureFlags lists, sorted, the features that evaluate to a truthy value for attributes.
func (c *Client) GetActiveFeatureFlags(ctx context.Context, attributes map[string]interface{}) ([]string, error) {
	features, err := c.GetFeatures(ctx)
	if err != nil {
		return nil, err
	}
	active := []string{}
	for name, feature := range features {
		if truthy(feature.Evaluate(name, attributes)) {
			active = append(active, name)
		}
	}
	sort.Strings(active)
	return active, nil
}

func (c *Client) IsOn(ctx context.Context, name string, attributes map[string]interface{}) (bool, error) {
	features, err := c.GetFeatures(ctx)
	if err != nil {
		return false, err
	}
	feature, ok := features[name]
	if !ok {
		return false, nil
	}
	return truthy(feature.Evaluate(name, attributes)), nil
}
