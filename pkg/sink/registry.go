package sink

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// Registry maps sink and uploader names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	uploaders map[string]UploaderFactory
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		uploaders: make(map[string]UploaderFactory),
	}
}

// Register adds a sink factory. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "sink %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// RegisterUploader adds an uploader factory.
func (r *Registry) RegisterUploader(name string, f UploaderFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.uploaders[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "uploader %s already registered", name)
	}
	r.uploaders[name] = f
	return nil
}

// New creates the sink named by cfg.Type, wrapped with an uploader when
// cfg.Upload is set.
func (r *Registry) New(ctx context.Context, cfg Config, columns []schema.ColumnSpec, logger *zap.Logger) (Sink, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "sink %q not found", cfg.Type)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("sink", cfg.Type))

	var upload Uploader
	if cfg.Upload != nil {
		if cfg.Path == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "sink %s has no local file to upload", cfg.Type)
		}
		r.mu.RLock()
		uf, ok := r.uploaders[cfg.Upload.Provider]
		r.mu.RUnlock()
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "uploader %q not found", cfg.Upload.Provider)
		}
		u, err := uf(ctx, *cfg.Upload, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create uploader")
		}
		upload = u
	}

	s, err := factory(ctx, Params{Config: cfg, Columns: columns, Logger: logger})
	if err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeInternal {
			err = errors.Wrap(err, errors.ErrorTypeConfig, "failed to create sink "+cfg.Type)
		}
		return nil, err
	}

	if upload != nil {
		s = &uploadingSink{Sink: s, path: cfg.Path, cfg: *cfg.Upload, uploader: upload, logger: logger}
	}
	return s, nil
}

// Names lists registered sinks in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a factory to the global registry. It panics on duplicates
// since it is only called from init.
func Register(name string, f Factory) {
	if err := globalRegistry.Register(name, f); err != nil {
		panic(err)
	}
}

// RegisterUploader adds an uploader to the global registry.
func RegisterUploader(name string, f UploaderFactory) {
	if err := globalRegistry.RegisterUploader(name, f); err != nil {
		panic(err)
	}
}

// New creates a sink from the global registry.
func New(ctx context.Context, cfg Config, columns []schema.ColumnSpec, logger *zap.Logger) (Sink, error) {
	return globalRegistry.New(ctx, cfg, columns, logger)
}

// Names lists the sinks of the global registry.
func Names() []string {
	return globalRegistry.Names()
}
