package adminapi

import "fmt"

// ConfigList returns every configurable key.
func (a *Admin) ConfigList() []string {
	return a.cfg.ListKeys()
}

// ConfigGet reads a single key's current value.
func (a *Admin) ConfigGet(key string) (string, error) {
	value, ok := a.cfg.Get(key)
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return value, nil
}

// ConfigSet writes a single key's value. Callers are responsible for
// persisting the config back to disk afterward (WriteYAML), since Admin
// holds the in-memory Config but doesn't own where it's loaded from.
func (a *Admin) ConfigSet(key, value string) error {
	return a.cfg.Set(key, value)
}

// ConfigReset restores every key to its default value.
func (a *Admin) ConfigReset() {
	a.cfg.Reset()
}
