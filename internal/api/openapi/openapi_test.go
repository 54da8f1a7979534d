package openapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	for _, path := range []string{
		"/instances",
		"/instances/{instance_id}/ports",
		"/instances/{instance_id}/network-info",
		"/networks/validate",
		"/health/live",
		"/health/ready",
	} {
		require.NotNil(t, doc.Paths.Find(path), "missing path %s", path)
	}

	ports := doc.Paths.Find("/instances/{instance_id}/ports")
	require.NotNil(t, ports.Post)
	require.NotNil(t, ports.Delete)
	require.NotEmpty(t, Raw())
}
