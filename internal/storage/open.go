package storage

import "fmt"

// Open constructs the Store named by backend: "memory" (default) or "sqlite".
// dataDir is only consulted by the sqlite backend.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
