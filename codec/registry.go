package codec

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"netmsg/wire"
)

// ErrUnknownProtocol is returned by LoadProtocol when none of the requested
// names resolve to a registered plugin.
var ErrUnknownProtocol = fmt.Errorf("codec: unknown protocol")

// DefaultProtocols is the ordered list LoadProtocol tries when no name is
// given, matching pyserve.socketprotocol.DEFAULT_PROTOCOL.
var DefaultProtocols = []string{"msgpack", "json"}

// Registry is an explicit, application-owned codec registry, in place of
// the Python original's process-wide module-level dict, so tests can build
// their own instance without cross-test coupling.
//
// Framer construction is memoized with a bounded LRU (capacity 256), keyed
// on (name, sorted options).
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]plugin
	cache   *lru.Cache[string, wire.Framer]
}

// NewRegistry builds a registry with the three built-in codecs
// pre-registered under their default names and framing kinds (json=str,
// msgpack=bin, gobject=bin), matching the shipped protocols/plugins.json
// manifest.
func NewRegistry() *Registry {
	cache, err := lru.New[string, wire.Framer](256)
	if err != nil {
		// Only returns an error for a non-positive size, which 256 never is.
		panic(err)
	}
	r := &Registry{plugins: make(map[string]plugin), cache: cache}
	r.RegisterPlugin("json", FrameTextual, &JSONCodec{}, defaultArgsFor("json"))
	r.RegisterPlugin("msgpack", FrameBinary, &MsgpackCodec{}, defaultArgsFor("msgpack"))
	r.RegisterPlugin("gobject", FrameBinary, &GobjectCodec{}, defaultArgsFor("gobject"))
	return r
}

// RegisterPlugin adds or replaces a named codec plugin. name is lower-cased
// so lookups stay case-insensitive.
func (r *Registry) RegisterPlugin(name string, kind FrameKind, c wire.Codec, defaultArgs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[strings.ToLower(name)] = plugin{kind: kind, codec: c, defaultArgs: defaultArgs}
}

// LoadManifest registers every entry of a protocols/plugins.json-shaped
// manifest against the built-in packages table. Each entry is keyed by its
// own logical manifest name, read fresh out of the map range on each
// iteration rather than aliasing a shared loop variable — the bug the
// Python original carries, where every registered plugin can end up bound
// to whichever name the loop last visited.
func (r *Registry) LoadManifest(data []byte) error {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("codec: invalid manifest: %w", err)
	}
	for logicalName, entry := range manifest {
		factory, ok := builtinPackages[entry.PackageName]
		if !ok {
			return fmt.Errorf("codec: manifest entry %q references unknown package %q", logicalName, entry.PackageName)
		}
		kind := FrameKind(entry.Type)
		if kind != FrameBinary && kind != FrameTextual {
			return fmt.Errorf("codec: manifest entry %q has unknown type %q", logicalName, entry.Type)
		}
		r.RegisterPlugin(logicalName, kind, factory(), defaultArgsFor(entry.PackageName))
	}
	return nil
}

// LoadManifestFile reads a manifest file off disk and passes it to
// LoadManifest, for the common case of a protocols/plugins.json checked
// into an application's own repository.
func (r *Registry) LoadManifestFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("codec: reading manifest %s: %w", path, err)
	}
	return r.LoadManifest(data)
}

// LoadProtocol resolves a name (or an ordered fallback list) plus an
// options map to a ready wire.Framer, matching pyserve.load_protocol: for a
// list, the first name that resolves wins; an empty/nil names list falls
// back to DefaultProtocols.
func (r *Registry) LoadProtocol(names []string, options map[string]any) (wire.Framer, error) {
	if len(names) == 0 {
		names = DefaultProtocols
	}

	cacheSuffix := sortedOptionsKey(options)
	var lastErr error
	for _, name := range names {
		lower := strings.ToLower(name)
		key := lower + "|" + cacheSuffix

		if framer, ok := r.cache.Get(key); ok {
			return framer, nil
		}

		r.mu.RLock()
		p, found := r.plugins[lower]
		r.mu.RUnlock()
		if !found {
			lastErr = fmt.Errorf("%w: %s", ErrUnknownProtocol, lower)
			continue
		}

		framer := buildFramer(p, options)
		r.cache.Add(key, framer)
		return framer, nil
	}
	if lastErr == nil {
		lastErr = ErrUnknownProtocol
	}
	return nil, lastErr
}

// LoadAny tries every registered plugin name in sorted order and returns
// the first that resolves. Restored from pyserve.load_any_protocol, a
// helper the distilled spec dropped but costs nothing beyond the registry
// that already exists.
func (r *Registry) LoadAny() (wire.Framer, error) {
	r.mu.RLock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		framer, err := r.LoadProtocol([]string{name}, nil)
		if err == nil {
			return framer, nil
		}
	}
	return nil, fmt.Errorf("codec: no protocols are loaded")
}

func buildFramer(p plugin, options map[string]any) wire.Framer {
	merged := mergeOptions(p.defaultArgs, options)
	switch p.kind {
	case FrameTextual:
		headerLength := intOption(merged, "header_length", 12)
		zeroString := stringOption(merged, "zero_string", "0")
		return wire.NewTextualFramer(p.codec, headerLength, zeroString)
	default:
		return wire.NewBinaryFramer(p.codec)
	}
}

func mergeOptions(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func intOption(m map[string]any, key string, fallback int) int {
	if v, ok := m[key]; ok {
		if i, ok := v.(int); ok {
			return i
		}
	}
	return fallback
}

func stringOption(m map[string]any, key string, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// sortedOptionsKey builds a stable cache key from an options map so
// LoadProtocol is pure on (name, sorted(options)): the same name and the
// same option set, regardless of insertion order, always resolve to the
// same cached Framer instance.
func sortedOptionsKey(options map[string]any) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, options[k])
	}
	return b.String()
}
