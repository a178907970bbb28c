package hooks

import "sync"

// Registration binds one callback URL to a domain event name.
type Registration struct {
	Event   string `json:"event"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// Registry holds the callback registrations consulted on every fan-out.
// It is constructed at process start and injected into the Hub; there is no
// ambient global.
type Registry struct {
	mu      sync.RWMutex
	byEvent map[string][]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byEvent: make(map[string][]Registration)}
}

// Register appends a callback for the event name.
func (r *Registry) Register(event, url string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEvent[event] = append(r.byEvent[event], Registration{Event: event, URL: url, Enabled: enabled})
}

// Clear removes every registration under the event name.
func (r *Registry) Clear(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byEvent, event)
}

// For returns the enabled registrations for the event name.
func (r *Registry) For(event string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := r.byEvent[event]
	out := make([]Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.Enabled && reg.URL != "" {
			out = append(out, reg)
		}
	}
	return out
}

// All returns every registration, enabled or not.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Registration
	for _, regs := range r.byEvent {
		out = append(out, regs...)
	}
	return out
}
