package agent

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// identifierSuffix marks an identifier as naming an agent.
const identifierSuffix = "Agent"

var (
	ErrNotQualified = errors.New("definition does not qualify as an agent")
	ErrNilAgent     = errors.New("factory returned no agent")
)

// Factory constructs an agent. It runs at most once per successful Resolve.
type Factory func() (Agent, error)

// Definition registers one agent implementation under its identifier, for
// example "CondensedAgent".
type Definition struct {
	Identifier string
	New        Factory
}

// Source provides agent definitions. A source that fails to load is logged
// and skipped by Discover.
type Source interface {
	Name() string
	Definitions() ([]Definition, error)
}

// DisplayName derives the registry key from an identifier: a space goes
// before each capital letter and the trailing "Agent" marker is removed.
// "ContextMapperAgent" becomes "Context Mapper".
func DisplayName(identifier string) string {
	var b strings.Builder
	for _, r := range identifier {
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	name := strings.TrimSpace(b.String())
	name = strings.TrimSuffix(name, identifierSuffix)
	return strings.TrimSpace(name)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

func WithLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithFailureTTL makes Resolve remember a failed construction for ttl
// before trying the factory again. Zero retries on every call.
func WithFailureTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.failureTTL = ttl
	}
}

// Registry maps display names to agent factories and keeps at most one live
// agent per name. It is safe for concurrent use.
type Registry struct {
	logger     *log.Logger
	failureTTL time.Duration
	now        func() time.Time

	mu        sync.Mutex
	order     []string
	factories map[string]Factory
	instances map[string]Agent
	failures  map[string]time.Time

	group singleflight.Group
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:    log.Default(),
		now:       time.Now,
		factories: make(map[string]Factory),
		instances: make(map[string]Agent),
		failures:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover loads every source in order and registers its qualifying
// definitions. It returns the number of definitions registered.
func (r *Registry) Discover(sources ...Source) int {
	registered := 0
	for _, src := range sources {
		defs, err := src.Definitions()
		if err != nil {
			r.logger.Error("Error loading agent source", "source", src.Name(), "error", err)
			continue
		}

		for _, def := range defs {
			if err := r.Register(def); err != nil {
				r.logger.Warn("Skipping agent definition",
					"source", src.Name(),
					"identifier", def.Identifier,
					"error", err,
				)
				continue
			}
			registered++
			r.logger.Info("Loaded agent", "name", DisplayName(def.Identifier), "source", src.Name())
		}
	}
	return registered
}

// Register adds def under its display name. A later definition with the
// same display name replaces the earlier one in place.
func (r *Registry) Register(def Definition) error {
	name := DisplayName(def.Identifier)
	if def.New == nil || name == "" || !strings.HasSuffix(def.Identifier, identifierSuffix) {
		return fmt.Errorf("%w: %q", ErrNotQualified, def.Identifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		r.logger.Debug("Replacing agent definition", "name", name, "identifier", def.Identifier)
	} else {
		r.order = append(r.order, name)
	}
	r.factories[name] = def.New
	delete(r.instances, name)
	delete(r.failures, name)
	return nil
}

// Resolve returns the agent registered under name, constructing it on first
// use. Unknown names and failed constructions both report false.
func (r *Registry) Resolve(name string) (Agent, bool) {
	r.mu.Lock()
	if a, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return a, true
	}
	newAgent, ok := r.factories[name]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	if until, failed := r.failures[name]; failed {
		if r.now().Before(until) {
			r.mu.Unlock()
			return nil, false
		}
		delete(r.failures, name)
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.Lock()
		if a, ok := r.instances[name]; ok {
			r.mu.Unlock()
			return a, nil
		}
		r.mu.Unlock()

		a, err := newAgent()
		if err == nil && a == nil {
			err = ErrNilAgent
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			if r.failureTTL > 0 {
				r.failures[name] = r.now().Add(r.failureTTL)
			}
			return nil, err
		}
		r.instances[name] = a
		return a, nil
	})
	if err != nil {
		r.logger.Error("Error creating agent instance", "name", name, "error", err)
		return nil, false
	}
	return v.(Agent), true
}

// List returns the registered names in discovery order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
