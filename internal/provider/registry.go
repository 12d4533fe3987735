package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/marketpulse/scheduler/internal/domain"
)

// Registry resolves which adapter instance and provider class handle a
// given job. Concrete adapters are out of scope; this is the
// wiring point a deployment populates at startup via Register/SetDefault.
type Registry struct {
	mu            sync.RWMutex
	byName        map[string]Adapter
	defaultByType map[string]string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:        map[string]Adapter{},
		defaultByType: map[string]string{},
	}
}

// Register adds an adapter under name, callable later either as a job's
// explicit `collector_kwargs.provider` override or as an asset type's
// default via SetDefault.
func (r *Registry) Register(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = adapter
}

// SetDefault makes name the provider used for assetType when a job doesn't
// specify one explicitly.
func (r *Registry) SetDefault(assetType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultByType[assetType] = name
}

// Resolve picks the adapter for a job: an explicit "provider" key in
// collector_kwargs wins, otherwise the asset type's registered default.
func (r *Registry) Resolve(assetType string, collectorKwargs domain.JSONBMap) (Adapter, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, _ := collectorKwargs["provider"].(string)
	if name == "" {
		name = r.defaultByType[assetType]
	}
	if name == "" {
		return nil, "", fmt.Errorf("provider: no provider registered for asset type %q", assetType)
	}

	adapter, ok := r.byName[name]
	if !ok {
		return nil, "", fmt.Errorf("provider: unknown provider %q", name)
	}
	return adapter, name, nil
}

// JobResolver adapts a Registry to the shape the scheduler injects
// (scheduler.ProviderResolver): resolution keyed on a job's asset type and
// collector kwargs rather than the registry's raw arguments.
type JobResolver struct {
	Registry *Registry
}

// Resolve implements the scheduler's provider-resolution dependency.
func (j JobResolver) Resolve(ctx context.Context, job *domain.Job) (Adapter, string, error) {
	return j.Registry.Resolve(job.AssetType, job.CollectorKwargs)
}
