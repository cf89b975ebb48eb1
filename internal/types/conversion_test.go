package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provisioningMeta struct {
	Hostname string `json:"hostname"`
	DiskGB   int    `json:"disk_gb"`
	Managed  bool   `json:"managed"`
}

func TestToStruct(t *testing.T) {
	meta := map[string]interface{}{
		"hostname": "web01",
		// storage hands numbers back as float64
		"disk_gb": float64(80),
		"managed": true,
	}

	got, err := ToStruct[provisioningMeta](meta)
	require.NoError(t, err)
	assert.Equal(t, provisioningMeta{Hostname: "web01", DiskGB: 80, Managed: true}, got)

	// nil map decodes to the zero value
	got, err = ToStruct[provisioningMeta](nil)
	require.NoError(t, err)
	assert.Equal(t, provisioningMeta{}, got)
}

func TestToMapRoundTrip(t *testing.T) {
	in := provisioningMeta{Hostname: "web01", DiskGB: 80, Managed: true}

	m, err := ToMap(in)
	require.NoError(t, err)
	assert.Equal(t, "web01", m["hostname"])

	out, err := ToStruct[provisioningMeta](m)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
