// Package kvstore defines the namespaced key-value store the kernel persists
// all process-wide and per-intent state to. Values are opaque JSON blobs;
// callers own marshaling.
package kvstore

// KVStore is the minimal interface the kernel's collaborators require:
// get/set/remove of JSON blobs per key, namespaced by a bucket/collection.
type KVStore interface {
	// Get returns the raw bytes stored at (namespace, key), and false if absent.
	Get(namespace, key string) ([]byte, bool, error)

	// Set stores raw bytes at (namespace, key), creating the namespace if needed.
	Set(namespace, key string, value []byte) error

	// Remove deletes (namespace, key). Removing an absent key is not an error.
	Remove(namespace, key string) error

	// Keys lists every key currently stored under namespace.
	Keys(namespace string) ([]string, error)

	// All returns every (key, value) pair under namespace.
	All(namespace string) (map[string][]byte, error)

	// Close releases underlying resources.
	Close() error
}
