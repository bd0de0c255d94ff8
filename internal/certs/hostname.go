package certs

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"mingmong/internal/common/errors"
)

// sslipSuffix is a wildcard DNS service: <a-b-c-d>.sslip.io resolves to
// a.b.c.d without any registration, which makes a publicly trusted
// certificate obtainable for a server with no domain name.
const sslipSuffix = ".sslip.io"

// ipEchoURL returns the caller's public address as plain text.
const ipEchoURL = "https://api.ipify.org"

// PublicIPFunc discovers the server's public IPv4 address.
type PublicIPFunc func(ctx context.Context) (string, error)

// PublicIP queries a public IP echo service.
func PublicIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ipEchoURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.ProvisioningError("IP echo service returned "+resp.Status, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// DeriveHostname picks the certificate hostname: the operator's domain when
// given, otherwise a wildcard-DNS name embedding the public IP.
func DeriveHostname(ctx context.Context, domain string, lookup PublicIPFunc) (string, error) {
	if domain != "" {
		return domain, nil
	}

	ip, err := lookup(ctx)
	if err != nil {
		return "", errors.ProvisioningError("cannot determine public IP", err)
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return "", errors.ProvisioningError("IP echo service returned an unusable address: "+ip, nil)
	}

	return strings.ReplaceAll(parsed.To4().String(), ".", "-") + sslipSuffix, nil
}
