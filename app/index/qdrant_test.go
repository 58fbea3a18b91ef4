package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionNameCollisionFree(t *testing.T) {
	// Both ids sanitize to the same text; the raw-id fingerprint must keep
	// their collections apart.
	a := collectionName("alice.1")
	b := collectionName("alice/1")
	assert.NotEqual(t, a, b)

	assert.Equal(t, a, collectionName("alice.1"))
	assert.True(t, strings.HasPrefix(a, "user_alice-1_"))

	for _, name := range []string{a, b, collectionName("бob"), collectionName("")} {
		for _, r := range name {
			valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || r == '-' || r == '_'
			assert.True(t, valid, "invalid rune %q in %s", r, name)
		}
	}
}

func TestChunkPointIDsPerGeneration(t *testing.T) {
	assert.Equal(t, chunkPointID("u", "d", "g1", 0), chunkPointID("u", "d", "g1", 0))
	assert.NotEqual(t, chunkPointID("u", "d", "g1", 0), chunkPointID("u", "d", "g1", 1))
	// A new ingestion writes under fresh ids instead of overwriting the ones
	// a concurrent search may still be reading.
	assert.NotEqual(t, chunkPointID("u", "d", "g1", 0), chunkPointID("u", "d", "g2", 0))
}

func TestManifestPointIDStable(t *testing.T) {
	// Generation-independent: the flip overwrites one point in place.
	assert.Equal(t, manifestPointID("u", "d"), manifestPointID("u", "d"))
	assert.NotEqual(t, manifestPointID("u", "d"), manifestPointID("u", "d2"))
	assert.NotEqual(t, manifestPointID("u", "d"), manifestPointID("u2", "d"))
}
