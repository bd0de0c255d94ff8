package certs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mingmong/internal/certs"
	"mingmong/internal/common/errors"
)

func staticIP(ip string) certs.PublicIPFunc {
	return func(context.Context) (string, error) { return ip, nil }
}

func TestDeriveHostnamePrefersOperatorDomain(t *testing.T) {
	host, err := certs.DeriveHostname(context.Background(), "ping.example.com", staticIP("203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, "ping.example.com", host)
}

func TestDeriveHostnameFromPublicIP(t *testing.T) {
	host, err := certs.DeriveHostname(context.Background(), "", staticIP("203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, "203-0-113-7.sslip.io", host)
}

func TestDeriveHostnameLookupFailure(t *testing.T) {
	lookup := func(context.Context) (string, error) {
		return "", errors.ProvisioningError("echo service unreachable", nil)
	}

	_, err := certs.DeriveHostname(context.Background(), "", lookup)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeProvisioning))
}

func TestDeriveHostnameRejectsUnusableAddress(t *testing.T) {
	for _, bad := range []string{"not-an-ip", "2001:db8::1", ""} {
		_, err := certs.DeriveHostname(context.Background(), "", staticIP(bad))
		assert.Error(t, err, "address %q must be rejected", bad)
	}
}
