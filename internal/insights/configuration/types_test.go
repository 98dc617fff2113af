package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/insights/internal/common/cache"
	commonconfig "github.com/weni-ai/insights/internal/common/config"
	"github.com/weni-ai/insights/internal/common/httpclient"
	"github.com/weni-ai/insights/internal/insights/integrations"
	"github.com/weni-ai/insights/internal/upstream/vtex"
)

const projectKey = "0c4e1f9a-3b7d-4e2a-8f6c-1d2e3f4a5b6c"

func validConfig() InsightsConfig {
	tiers := cache.TierConfig{ShortTTL: time.Minute, LongTTL: time.Hour}
	return InsightsConfig{
		HttpPort:        8000,
		ShutdownTimeout: time.Second,
		Cache:           CacheConfig{Store: CacheStoreMemory},
		HttpClient:      httpclient.DefaultConfig(),
		VTEX:            VTEXConfig{MaxPages: 10, Cache: tiers},
		AbandonedCart:   AbandonedCartConfig{Cache: tiers},
	}
}

func TestValidate_Integrations(t *testing.T) {
	tests := map[string]struct {
		project   integrations.Project
		wantError string
	}{
		"no integrations": {},
		"complete": {
			project: integrations.Project{
				VTEX:     &vtex.Credentials{Domain: "store.vtexcommercestable.com.br", AppKey: "key", AppToken: "token"},
				WhatsApp: &integrations.WhatsApp{WabaID: "waba-1", AbandonedCartTemplateIDs: []string{"t-1"}},
			},
		},
		"vtex without token": {
			project:   integrations.Project{VTEX: &vtex.Credentials{Domain: "store.vtexcommercestable.com.br", AppKey: "key"}},
			wantError: "AppToken",
		},
		"whatsapp without templates": {
			project:   integrations.Project{WhatsApp: &integrations.WhatsApp{WabaID: "waba-1"}},
			wantError: "AbandonedCartTemplateIDs",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			config := validConfig()
			config.Integrations = map[string]integrations.Project{projectKey: tc.project}

			err := commonconfig.Validate(config)
			if tc.wantError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantError)
		})
	}
}
