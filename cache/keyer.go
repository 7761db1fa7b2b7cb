package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Keyer maps logical entry names (such as "accessToken") to storage keys.
//
// Contract:
// - Determinism: the same namespace and name always produce the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key returns the storage key for name.
	Key(name string) string
}

// NamespaceKeyer scopes keys to a namespace so several clients can share one
// backend. An empty namespace returns names unchanged.
type NamespaceKeyer struct {
	tag string
}

// NewNamespaceKeyer creates a keyer for namespace.
//
// The namespace (often a base URL) is hashed and wrapped in a Redis hash tag:
// {<first 16 hex chars of SHA-256(namespace)>}:<name>
func NewNamespaceKeyer(namespace string) *NamespaceKeyer {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return &NamespaceKeyer{}
	}
	hash := sha256.Sum256([]byte(namespace))
	return &NamespaceKeyer{tag: "{" + hex.EncodeToString(hash[:8]) + "}"}
}

// Key returns the namespaced key for name.
func (k *NamespaceKeyer) Key(name string) string {
	if k == nil || k.tag == "" {
		return name
	}
	return k.tag + ":" + name
}

// Ensure NamespaceKeyer implements Keyer
var _ Keyer = (*NamespaceKeyer)(nil)
