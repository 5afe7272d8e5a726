package cluster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := generateAPIKey()
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "cpk_"))
	assert.Greater(t, len(key), len("cpk_"))

	key2, err := generateAPIKey()
	assert.NoError(t, err)
	assert.NotEqual(t, key, key2, "two generated keys should not collide")
}

func TestCreateResponse_CarriesPlaintextKeyAlongsideHash(t *testing.T) {
	resp := CreateResponse{
		Cluster: Cluster{ID: "cl-1", Name: "test", APIKeyHash: "deadbeef"},
		APIKey:  "cpk_plaintext",
	}

	assert.Equal(t, "cpk_plaintext", resp.APIKey)
	assert.Equal(t, "deadbeef", resp.Cluster.APIKeyHash)
}
