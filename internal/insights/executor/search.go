package executor

import (
	"context"
	"net/http"
	"strings"

	"github.com/weni-ai/insights/internal/common/httpclient"
	"github.com/weni-ai/insights/internal/querygen"
)

type SearchExecutor interface {
	Execute(ctx context.Context, query *querygen.SearchQuery) (map[string]interface{}, error)
}

// ElasticSearchExecutor posts generated requests to an Elasticsearch cluster.
type ElasticSearchExecutor struct {
	client  *httpclient.Client
	baseURL string
	headers http.Header
}

func NewElasticSearchExecutor(client *httpclient.Client, baseURL string, headers http.Header) *ElasticSearchExecutor {
	return &ElasticSearchExecutor{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: headers,
	}
}

func (e *ElasticSearchExecutor) Execute(ctx context.Context, query *querygen.SearchQuery) (map[string]interface{}, error) {
	response, err := e.client.RequestWithRetry(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     e.baseURL + "/" + strings.TrimPrefix(query.Endpoint, "/"),
		Headers: e.headers,
		Body:    query.Body,
	})
	if err != nil {
		return nil, err
	}
	var decoded map[string]interface{}
	if err := response.DecodeJSON(&decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// ExtractValue pulls the answer to queryType out of a search response:
// the count, the list of documents, or the nested aggregate value.
func ExtractValue(queryType string, valuesPath string, response map[string]interface{}) interface{} {
	switch queryType {
	case "", querygen.AggregationCount:
		return response["count"]
	case querygen.AggregationList:
		hits, _ := lookup(response, "hits", "hits").([]interface{})
		documents := make([]interface{}, 0, len(hits))
		for _, hit := range hits {
			if m, ok := hit.(map[string]interface{}); ok {
				documents = append(documents, m["_source"])
			}
		}
		return documents
	default:
		return lookup(response, "aggregations", valuesPath, "filtered", "result", "value")
	}
}

func lookup(m map[string]interface{}, path ...string) interface{} {
	var current interface{} = m
	for _, key := range path {
		asMap, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = asMap[key]
	}
	return current
}
