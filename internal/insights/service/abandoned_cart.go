package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weni-ai/insights/internal/common/cache"
	"github.com/weni-ai/insights/internal/common/insightserrors"
	"github.com/weni-ai/insights/internal/common/observability"
	"github.com/weni-ai/insights/internal/insights/integrations"
	"github.com/weni-ai/insights/internal/upstream/meta"
	"github.com/weni-ai/insights/internal/upstream/vtex"
)

// AbandonedCartUTMSource tags orders placed from an abandoned cart notification.
const AbandonedCartUTMSource = "weniabandonedcart"

const (
	abandonedCartCacheName  = "abandoned_cart"
	abandonedCartServiceTag = "abandoned cart"
)

type AbandonedCartMetrics struct {
	SentMessages      int     `json:"sent_messages"`
	DeliveredMessages int     `json:"delivered_messages"`
	ReadMessages      int     `json:"read_messages"`
	Interactions      int     `json:"interactions"`
	UTMRevenue        float64 `json:"utm_revenue"`
	OrdersPlaced      int     `json:"orders_placed"`
}

type TemplateAnalytics interface {
	TemplateAnalytics(ctx context.Context, wabaID string, templateIDs []string, start, end time.Time) (meta.TemplateMetrics, error)
}

type OrderLister interface {
	ListOrders(ctx context.Context, credentials vtex.Credentials, query vtex.OrdersQuery) ([]vtex.Order, error)
}

// AbandonedCartService joins the delivery funnel of the abandoned cart templates with the
// revenue VTEX attributes to them.
type AbandonedCartService struct {
	integrations integrations.Provider
	templates    TemplateAnalytics
	orders       OrderLister
	cache        *cache.CacheAside[AbandonedCartMetrics]
}

func NewAbandonedCartService(
	provider integrations.Provider,
	templates TemplateAnalytics,
	orders OrderLister,
	store cache.Store,
	tiers cache.TierConfig,
	recorder observability.Recorder,
) *AbandonedCartService {
	return &AbandonedCartService{
		integrations: provider,
		templates:    templates,
		orders:       orders,
		cache:        cache.NewCacheAside[AbandonedCartMetrics](abandonedCartCacheName, store, tiers, recorder),
	}
}

func (s *AbandonedCartService) GetMetrics(ctx context.Context, projectUUID uuid.UUID, startDate, endDate string) (AbandonedCartMetrics, error) {
	params := vtex.OrdersParams{StartDate: startDate, EndDate: endDate, UTMSource: AbandonedCartUTMSource}
	start, end, err := params.Window(abandonedCartServiceTag)
	if err != nil {
		return AbandonedCartMetrics{}, err
	}
	project, err := s.integrations.Get(projectUUID)
	if err != nil {
		return AbandonedCartMetrics{}, err
	}
	if project.VTEX == nil || project.WhatsApp == nil {
		return AbandonedCartMetrics{}, &insightserrors.ErrNotFound{
			Type:    "abandoned cart integration",
			Value:   projectUUID.String(),
			Message: "project needs both a vtex account and whatsapp templates",
		}
	}

	key := fmt.Sprintf("%s:%s:%s", projectUUID, startDate, endDate)
	return s.cache.GetValue(ctx, key, func(ctx context.Context) (AbandonedCartMetrics, error) {
		templates, err := s.templates.TemplateAnalytics(ctx, project.WhatsApp.WabaID, project.WhatsApp.AbandonedCartTemplateIDs, start, end)
		if err != nil {
			return AbandonedCartMetrics{}, err
		}
		orders, err := s.orders.ListOrders(ctx, *project.VTEX, vtex.OrdersQuery{Start: start, End: end, UTMSource: AbandonedCartUTMSource})
		if err != nil {
			return AbandonedCartMetrics{}, err
		}
		summary := vtex.Summarise(orders)
		return AbandonedCartMetrics{
			SentMessages:      templates.Sent,
			DeliveredMessages: templates.Delivered,
			ReadMessages:      templates.Read,
			Interactions:      templates.Clicked,
			UTMRevenue:        summary.AccumulatedTotal,
			OrdersPlaced:      summary.CountSell,
		}, nil
	})
}
