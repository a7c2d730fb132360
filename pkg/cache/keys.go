package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Keyer builds cache keys for dataset layers.
type Keyer interface {
	// LayerKey is the key of the raw body of a layer read from source.
	LayerKey(level, source string) string
}

// LayerKeyer keys layer bodies as "layer:<level>:<sha256 of source>".
type LayerKeyer struct{}

// NewLayerKeyer creates the standard Keyer.
func NewLayerKeyer() Keyer {
	return LayerKeyer{}
}

// LayerKey implements Keyer.
func (LayerKeyer) LayerKey(level, source string) string {
	return "layer:" + level + ":" + Hash([]byte(source))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// keyType returns the leading namespace of key for hooks.
func keyType(key string) string {
	if kind, rest, ok := strings.Cut(key, ":"); ok && kind != "" && rest != "" {
		return kind
	}
	return "other"
}
