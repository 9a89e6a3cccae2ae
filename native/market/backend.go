package market

import "fmt"

// AssetBackend moves a uniquely identified asset between principals. The
// marketplace custody identity must be accepted as both source and
// destination.
type AssetBackend interface {
	Transfer(assetID uint64, from, to [20]byte) error
}

// ValueBackend moves a quantity of a fungible value unit between principals.
// One instance exists per distinct value backend; the native settlement
// currency is a ValueBackend held directly by the engine rather than looked
// up in the registry.
type ValueBackend interface {
	Transfer(amount uint64, from, to [20]byte) error
}

// BackendRegistry resolves backend identities to their adapter
// implementations. Registration happens once at wiring time; lookups are
// read-only afterwards.
type BackendRegistry struct {
	assets map[string]AssetBackend
	values map[string]ValueBackend
}

// NewBackendRegistry constructs an empty registry.
func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{
		assets: make(map[string]AssetBackend),
		values: make(map[string]ValueBackend),
	}
}

// RegisterAsset binds an asset custody adapter to a backend identity.
func (r *BackendRegistry) RegisterAsset(id string, backend AssetBackend) error {
	normalized, err := NormalizeBackendID(id)
	if err != nil {
		return err
	}
	if backend == nil {
		return fmt.Errorf("market: nil asset backend for %q", normalized)
	}
	r.assets[normalized] = backend
	return nil
}

// RegisterValue binds a fungible value adapter to a backend identity.
func (r *BackendRegistry) RegisterValue(id string, backend ValueBackend) error {
	normalized, err := NormalizeBackendID(id)
	if err != nil {
		return err
	}
	if backend == nil {
		return fmt.Errorf("market: nil value backend for %q", normalized)
	}
	r.values[normalized] = backend
	return nil
}

// Asset resolves the custody adapter registered under id.
func (r *BackendRegistry) Asset(id string) (AssetBackend, bool) {
	if r == nil {
		return nil, false
	}
	backend, ok := r.assets[id]
	return backend, ok
}

// Value resolves the fungible value adapter registered under id.
func (r *BackendRegistry) Value(id string) (ValueBackend, bool) {
	if r == nil {
		return nil, false
	}
	backend, ok := r.values[id]
	return backend, ok
}
