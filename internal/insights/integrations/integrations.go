// Package integrations resolves the third party accounts a project is connected to.
package integrations

import (
	"github.com/google/uuid"

	"github.com/weni-ai/insights/internal/common/insightserrors"
	"github.com/weni-ai/insights/internal/upstream/vtex"
)

type WhatsApp struct {
	// WhatsApp business account id
	WabaID string `validate:"required"`
	// Templates sent to customers who left a cart behind
	AbandonedCartTemplateIDs []string `validate:"required,min=1"`
}

type Project struct {
	VTEX     *vtex.Credentials
	WhatsApp *WhatsApp
}

type Provider interface {
	Get(projectUUID uuid.UUID) (Project, error)
}

// StaticProvider serves integrations loaded from configuration, keyed by project UUID.
type StaticProvider struct {
	projects map[uuid.UUID]Project
}

func NewStaticProvider(projects map[string]Project) (*StaticProvider, error) {
	parsed := make(map[uuid.UUID]Project, len(projects))
	for key, project := range projects {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, &insightserrors.ErrInvalidArgument{Name: "integrations", Value: key, Message: "keys must be project UUIDs"}
		}
		parsed[id] = project
	}
	return &StaticProvider{projects: parsed}, nil
}

func (p *StaticProvider) Get(projectUUID uuid.UUID) (Project, error) {
	project, ok := p.projects[projectUUID]
	if !ok {
		return Project{}, &insightserrors.ErrNotFound{Type: "project integrations", Value: projectUUID.String()}
	}
	return project, nil
}

// VTEXCredentials returns the project's VTEX account or ErrNotFound when it has none.
func VTEXCredentials(provider Provider, projectUUID uuid.UUID) (vtex.Credentials, error) {
	project, err := provider.Get(projectUUID)
	if err != nil {
		return vtex.Credentials{}, err
	}
	if project.VTEX == nil {
		return vtex.Credentials{}, &insightserrors.ErrNotFound{Type: "vtex integration", Value: projectUUID.String()}
	}
	return *project.VTEX, nil
}
