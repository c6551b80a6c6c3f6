package renderer

import "strings"

// Environment is an immutable set of variables layered over a base process
// environment when spawning the renderer. The zero value is empty.
type Environment struct {
	keys []string
	vals map[string]string
}

// With returns a copy of the environment with key set to value.
func (e Environment) With(key, value string) Environment {
	out := Environment{
		keys: make([]string, 0, len(e.keys)+1),
		vals: make(map[string]string, len(e.vals)+1),
	}
	for _, k := range e.keys {
		if envKeyEqual(k, key) {
			continue
		}
		out.keys = append(out.keys, k)
		out.vals[k] = e.vals[k]
	}
	out.keys = append(out.keys, key)
	out.vals[key] = value
	return out
}

// Lookup returns the overlay value for key.
func (e Environment) Lookup(key string) (string, bool) {
	for _, k := range e.keys {
		if envKeyEqual(k, key) {
			return e.vals[k], true
		}
	}
	return "", false
}

// Len returns the number of variables in the overlay.
func (e Environment) Len() int {
	return len(e.keys)
}

// Apply returns base with the overlay variables replacing any entries with
// the same name. base is not modified.
func (e Environment) Apply(base []string) []string {
	out := make([]string, 0, len(base)+len(e.keys))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := e.Lookup(key); overridden {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range e.keys {
		out = append(out, k+"="+e.vals[k])
	}
	return out
}

// Strings returns the overlay as KEY=VALUE entries in insertion order.
func (e Environment) Strings() []string {
	return e.Apply(nil)
}

func lookupBase(base []string, key string) (string, bool) {
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if ok && envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}
