package provider

import (
	"time"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"
)

// Registry resolves integration types to their adapters.
type Registry struct {
	adapters map[domain.IntegrationType]ports.ProviderAdapter
}

// NewRegistry builds a registry with every supported adapter registered.
// The schema cache and TTL back the adapters that fetch live provider
// schemas before a push.
func NewRegistry(client HTTPClient, cache ports.SchemaCache, schemaTTL time.Duration) *Registry {
	r := &Registry{adapters: make(map[domain.IntegrationType]ports.ProviderAdapter)}
	r.Register(NewMailchimpAdapter(client))
	r.Register(NewNotionAdapter(client, cache, schemaTTL))
	r.Register(NewDiscordAdapter(client))
	r.Register(NewHubSpotAdapter(client))
	r.Register(NewAirtableAdapter(client, cache, schemaTTL))
	r.Register(NewTwilioAdapter(client))
	r.Register(NewGoogleSheetsAdapter(client))
	r.Register(NewSlackAdapter(client))
	return r
}

func (r *Registry) Register(a ports.ProviderAdapter) {
	r.adapters[a.Type()] = a
}

func (r *Registry) Get(t domain.IntegrationType) (ports.ProviderAdapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, apperror.ErrUnknownProvider(string(t))
	}
	return a, nil
}
