package scheduler

import (
	"github.com/dandantas/agenda/internal/agenda"
	"github.com/dandantas/agenda/internal/platform"
)

// ProviderTypeAgenda marks providers that declare jobs
const ProviderTypeAgenda platform.ProviderType = "agenda"

// StoreKey is the provider store key holding the job declarations
const StoreKey = "agenda"

// Metadata lists the jobs a provider declares. Map keys are the names of the
// provider methods that process the jobs.
type Metadata struct {
	Namespace string
	Define    map[string]DefineJobOptions
	Every     map[string]EveryJobOptions
}

// DefineJobOptions declares a job processed by a provider method
type DefineJobOptions struct {
	Name string // Overrides the method name
	agenda.DefineOptions
}

// EveryJobOptions declares a recurring job
type EveryJobOptions struct {
	Interval string
	Name     string // Overrides the method name
	agenda.EveryOptions
}

// UseAgenda marks store as belonging to an agenda provider with the given
// job namespace. An empty namespace leaves job names unprefixed.
func UseAgenda(store *platform.Store, namespace string) {
	metadataFor(store).Namespace = namespace
}

// DefineJob declares that method processes a job
func DefineJob(store *platform.Store, method string, opts DefineJobOptions) {
	metadataFor(store).Define[method] = opts
}

// EveryJob declares that method processes a job repeating every interval.
// The job is also defined so it gets processed.
func EveryJob(store *platform.Store, method, interval string, opts EveryJobOptions) {
	meta := metadataFor(store)
	opts.Interval = interval
	meta.Every[method] = opts

	if _, exists := meta.Define[method]; !exists {
		meta.Define[method] = DefineJobOptions{Name: opts.Name}
	}
}

// GetMetadata returns the job declarations held by store, or an empty value
func GetMetadata(store *platform.Store) Metadata {
	meta := platform.StoreValue[*Metadata](store, StoreKey, nil)
	if meta == nil {
		return Metadata{}
	}
	return *meta
}

func metadataFor(store *platform.Store) *Metadata {
	meta := platform.StoreValue[*Metadata](store, StoreKey, nil)
	if meta == nil {
		meta = &Metadata{}
		store.Set(StoreKey, meta)
	}
	if meta.Define == nil {
		meta.Define = make(map[string]DefineJobOptions)
	}
	if meta.Every == nil {
		meta.Every = make(map[string]EveryJobOptions)
	}
	return meta
}

// jobName prefixes the job name with the namespace when one is set
func jobName(method, namespace, customName string) string {
	name := customName
	if name == "" {
		name = method
	}
	if namespace != "" {
		return namespace + "." + name
	}
	return name
}
