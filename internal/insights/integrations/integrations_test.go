package integrations

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/insights/internal/common/insightserrors"
	"github.com/weni-ai/insights/internal/upstream/vtex"
)

func TestStaticProvider(t *testing.T) {
	withVTEX := uuid.New()
	withoutVTEX := uuid.New()
	provider, err := NewStaticProvider(map[string]Project{
		withVTEX.String():    {VTEX: &vtex.Credentials{Domain: "store.vtexcommercestable.com.br", AppKey: "k", AppToken: "t"}},
		withoutVTEX.String(): {WhatsApp: &WhatsApp{WabaID: "waba", AbandonedCartTemplateIDs: []string{"t-1"}}},
	})
	require.NoError(t, err)

	credentials, err := VTEXCredentials(provider, withVTEX)
	require.NoError(t, err)
	assert.Equal(t, "k", credentials.AppKey)

	var notFound *insightserrors.ErrNotFound
	_, err = VTEXCredentials(provider, withoutVTEX)
	assert.True(t, errors.As(err, &notFound))

	_, err = provider.Get(uuid.New())
	assert.True(t, errors.As(err, &notFound))
}

func TestStaticProvider_RejectsBadKeys(t *testing.T) {
	_, err := NewStaticProvider(map[string]Project{"not-a-uuid": {}})
	var argErr *insightserrors.ErrInvalidArgument
	assert.True(t, errors.As(err, &argErr))
}
