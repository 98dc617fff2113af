package vtex

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/weni-ai/insights/internal/common/cache"
	"github.com/weni-ai/insights/internal/common/insightserrors"
	"github.com/weni-ai/insights/internal/common/observability"
)

const (
	dateLayout       = "2006-01-02"
	canceledStatus   = "canceled"
	ordersCacheName  = "vtex_orders"
	ordersServiceTag = "vtex orders"
)

// OrdersParams are the filters an order metrics request accepts. StartDate and EndDate are required.
type OrdersParams struct {
	StartDate string
	EndDate   string
	UTMSource string
}

// Window turns the dates into an inclusive [start of StartDate, end of EndDate] range in UTC.
func (p OrdersParams) Window(service string) (time.Time, time.Time, error) {
	var missing []string
	if strings.TrimSpace(p.StartDate) == "" {
		missing = append(missing, "start_date")
	}
	if strings.TrimSpace(p.EndDate) == "" {
		missing = append(missing, "end_date")
	}
	if len(missing) > 0 {
		return time.Time{}, time.Time{}, &insightserrors.ErrMissingRequiredFilter{Service: service, Missing: missing}
	}
	start, err := time.Parse(dateLayout, p.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, &insightserrors.ErrInvalidArgument{Name: "start_date", Value: p.StartDate, Message: "expected YYYY-MM-DD"}
	}
	end, err := time.Parse(dateLayout, p.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, &insightserrors.ErrInvalidArgument{Name: "end_date", Value: p.EndDate, Message: "expected YYYY-MM-DD"}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, &insightserrors.ErrInvalidArgument{Name: "end_date", Value: p.EndDate, Message: "must not be before start_date"}
	}
	return start, end.Add(24*time.Hour - time.Millisecond), nil
}

// OrderMetrics summarises the orders in a window. Values are in currency units, not cents.
type OrderMetrics struct {
	CountSell        int     `json:"count_sell"`
	AccumulatedTotal float64 `json:"accumulated_total"`
	AverageTicket    float64 `json:"medium_ticket"`
	MaxSell          float64 `json:"max_sell"`
	MinSell          float64 `json:"min_sell"`
}

func Summarise(orders []Order) OrderMetrics {
	metrics := OrderMetrics{}
	for _, order := range orders {
		if order.Status == canceledStatus {
			continue
		}
		value := order.TotalValue / 100
		if metrics.CountSell == 0 || value > metrics.MaxSell {
			metrics.MaxSell = value
		}
		if metrics.CountSell == 0 || value < metrics.MinSell {
			metrics.MinSell = value
		}
		metrics.CountSell++
		metrics.AccumulatedTotal += value
	}
	if metrics.CountSell > 0 {
		metrics.AverageTicket = round(metrics.AccumulatedTotal / float64(metrics.CountSell))
	}
	metrics.AccumulatedTotal = round(metrics.AccumulatedTotal)
	return metrics
}

func round(value float64) float64 {
	return math.Round(value*100) / 100
}

type OrdersService struct {
	client *Client
	cache  *cache.CacheAside[OrderMetrics]
}

func NewOrdersService(client *Client, store cache.Store, tiers cache.TierConfig, recorder observability.Recorder) *OrdersService {
	return &OrdersService{
		client: client,
		cache:  cache.NewCacheAside[OrderMetrics](ordersCacheName, store, tiers, recorder),
	}
}

func (s *OrdersService) GetMetrics(ctx context.Context, projectUUID string, credentials Credentials, params OrdersParams) (OrderMetrics, error) {
	start, end, err := params.Window(ordersServiceTag)
	if err != nil {
		return OrderMetrics{}, err
	}
	key := fmt.Sprintf("%s:%s:%s:%s", projectUUID, params.StartDate, params.EndDate, params.UTMSource)
	return s.cache.GetValue(ctx, key, func(ctx context.Context) (OrderMetrics, error) {
		orders, err := s.client.ListOrders(ctx, credentials, OrdersQuery{Start: start, End: end, UTMSource: params.UTMSource})
		if err != nil {
			return OrderMetrics{}, err
		}
		return Summarise(orders), nil
	})
}
