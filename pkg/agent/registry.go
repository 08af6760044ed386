package agent

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/harun/mcplink/pkg/rpcsession"
	"github.com/rs/zerolog"
)

// Variant is a named vendor configuration the registry can start.
type Variant struct {
	ID       string
	Provider Provider
}

// Info returns the variant's provider description.
func (v Variant) Info() Info {
	return v.Provider.Info()
}

// DefaultVariants returns the built-in variants.
func DefaultVariants() []Variant {
	return []Variant{
		{ID: "deepseek", Provider: NewOpenAIProvider()},
		{ID: "siliconflow", Provider: NewSiliconflowProvider()},
		{ID: "ollama", Provider: NewOllamaProvider()},
	}
}

// RegistryConfig holds dependencies shared by every client the registry creates.
type RegistryConfig struct {
	Logger     zerolog.Logger
	HTTPClient *http.Client
	Connector  rpcsession.Connector
	// OnCreate is called with every newly created client before it starts.
	OnCreate func(client *Client)
}

// Registry keeps at most one live client per variant.
type Registry struct {
	cfg       RegistryConfig
	mu        sync.Mutex
	variants  map[string]Variant
	instances map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:       cfg,
		variants:  make(map[string]Variant),
		instances: make(map[string]*Client),
	}
}

// NewDefaultRegistry creates a registry with DefaultVariants registered.
func NewDefaultRegistry(cfg RegistryConfig) *Registry {
	r := NewRegistry(cfg)
	for _, v := range DefaultVariants() {
		_ = r.Register(v)
	}
	return r
}

// Register adds a variant.
func (r *Registry) Register(v Variant) error {
	if v.ID == "" {
		return fmt.Errorf("variant id is required")
	}
	if v.Provider == nil {
		return fmt.Errorf("provider is required for variant %s", v.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.variants[v.ID]; exists {
		return fmt.Errorf("variant already registered: %s", v.ID)
	}
	r.variants[v.ID] = v
	return nil
}

// RegisterAll adds several variants.
func (r *Registry) RegisterAll(variants ...Variant) error {
	for _, v := range variants {
		if err := r.Register(v); err != nil {
			return err
		}
	}
	return nil
}

// Variants returns the registered variants ordered by id.
func (r *Registry) Variants() []Variant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Variant, 0, len(r.variants))
	for _, v := range r.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Variant looks up a registered variant.
func (r *Registry) Variant(id string) (Variant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variants[id]
	return v, ok
}

// Get returns the live client for id, if any.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.instances[id]
	return c, ok
}

// TryStart returns the running client for id, starting one if needed.
// A missing, stopped or finished instance is replaced by a new client built from cfg
// (or the variant defaults when cfg is nil). A running instance has its
// configuration reset to the variant defaults and then cfg applied.
func (r *Registry) TryStart(ctx context.Context, id string, cfg *Config) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	variant, ok := r.variants[id]
	if !ok {
		return nil, fmt.Errorf("unknown variant: %s", id)
	}

	instance := r.instances[id]
	if instance == nil || instance.ShouldStop() || instance.Finished() {
		created, err := NewClient(ClientOptions{
			Variant:    id,
			Provider:   variant.Provider,
			Config:     cfg,
			HTTPClient: r.cfg.HTTPClient,
			Connector:  r.cfg.Connector,
			Logger:     r.cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create client %s: %w", id, err)
		}
		if r.cfg.OnCreate != nil {
			r.cfg.OnCreate(created)
		}
		r.instances[id] = created
		instance = created
	}

	if instance.IsRunning() {
		instance.ResetConfig()
		if cfg != nil {
			instance.SetConfig(*cfg)
		}
		return instance, nil
	}

	if err := instance.Start(ctx); err != nil {
		return nil, err
	}
	r.cfg.Logger.Info().Str("variant", id).Msg("Client started")
	return instance, nil
}

// Stop removes the client for id and asks it to stop. It returns the removed client.
func (r *Registry) Stop(id string) *Client {
	r.mu.Lock()
	instance, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	instance.RequestStop()
	r.cfg.Logger.Info().Str("variant", id).Msg("Client stop requested")
	return instance
}

// StopAll stops every live client.
func (r *Registry) StopAll() []*Client {
	r.mu.Lock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	stopped := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c := r.Stop(id); c != nil {
			stopped = append(stopped, c)
		}
	}
	return stopped
}
