package certs

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"net"
	"net/http"

	"golang.org/x/crypto/acme"

	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
)

// Issuer obtains a certificate and key (PEM) for a domain.
type Issuer interface {
	Issue(ctx context.Context, domain string) (certPEM, keyPEM []byte, err error)
}

// acmeIssuer runs an ACME HTTP-01 exchange, serving the challenge itself on
// port 80. The account key is ephemeral: a fresh account per issuance keeps
// the server stateless across restarts.
type acmeIssuer struct {
	directoryURL string
	listenAddr   string
	logger       logging.Logger
}

func newACMEIssuer(directoryURL string, logger logging.Logger) *acmeIssuer {
	return &acmeIssuer{
		directoryURL: directoryURL,
		listenAddr:   ":80",
		logger:       logger,
	}
}

func (a *acmeIssuer) Issue(ctx context.Context, domain string) ([]byte, []byte, error) {
	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, errors.ProvisioningError("failed to generate ACME account key", err)
	}

	client := &acme.Client{
		Key:          accountKey,
		DirectoryURL: a.directoryURL,
	}

	if _, err := client.Register(ctx, &acme.Account{}, acme.AcceptTOS); err != nil && err != acme.ErrAccountAlreadyExists {
		return nil, nil, errors.ProvisioningError("ACME account registration failed", err)
	}

	order, err := client.AuthorizeOrder(ctx, acme.DomainIDs(domain))
	if err != nil {
		return nil, nil, errors.ProvisioningError("ACME order authorization failed", err)
	}

	for _, authzURL := range order.AuthzURLs {
		if err := a.completeAuthorization(ctx, client, authzURL); err != nil {
			return nil, nil, err
		}
	}

	order, err = client.WaitOrder(ctx, order.URI)
	if err != nil {
		return nil, nil, errors.ProvisioningError("ACME order did not become ready", err)
	}

	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, errors.ProvisioningError("failed to generate certificate key", err)
	}

	csr, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: domain},
		DNSNames: []string{domain},
	}, certKey)
	if err != nil {
		return nil, nil, errors.ProvisioningError("failed to create CSR", err)
	}

	chain, _, err := client.CreateOrderCert(ctx, order.FinalizeURL, csr, true)
	if err != nil {
		return nil, nil, errors.ProvisioningError("ACME finalization failed", err)
	}

	var certPEM []byte
	for _, der := range chain {
		certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	}

	keyDER, err := x509.MarshalECPrivateKey(certKey)
	if err != nil {
		return nil, nil, errors.ProvisioningError("failed to marshal certificate key", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	a.logger.Info("Certificate issued",
		logging.String("domain", domain),
		logging.Int("chain_length", len(chain)),
	)

	return certPEM, keyPEM, nil
}

// completeAuthorization answers one HTTP-01 challenge, serving the key
// authorization on port 80 for the CA's validation fetch.
func (a *acmeIssuer) completeAuthorization(ctx context.Context, client *acme.Client, authzURL string) error {
	authz, err := client.GetAuthorization(ctx, authzURL)
	if err != nil {
		return errors.ProvisioningError("failed to fetch ACME authorization", err)
	}
	if authz.Status == acme.StatusValid {
		return nil
	}

	var challenge *acme.Challenge
	for _, c := range authz.Challenges {
		if c.Type == "http-01" {
			challenge = c
			break
		}
	}
	if challenge == nil {
		return errors.ProvisioningError("CA offered no http-01 challenge", nil)
	}

	response, err := client.HTTP01ChallengeResponse(challenge.Token)
	if err != nil {
		return errors.ProvisioningError("failed to compute challenge response", err)
	}

	stop, err := a.serveChallenge(client.HTTP01ChallengePath(challenge.Token), response)
	if err != nil {
		return err
	}
	defer stop()

	if _, err := client.Accept(ctx, challenge); err != nil {
		return errors.ProvisioningError("failed to accept ACME challenge", err)
	}

	if _, err := client.WaitAuthorization(ctx, authz.URI); err != nil {
		return errors.ProvisioningError("ACME authorization failed", err)
	}

	return nil
}

func (a *acmeIssuer) serveChallenge(path, response string) (stop func(), err error) {
	listener, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return nil, errors.ProvisioningError("cannot bind challenge port", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(response))
	})

	srv := &http.Server{Handler: mux}
	go func() {
		_ = srv.Serve(listener)
	}()

	a.logger.Debug("Serving HTTP-01 challenge",
		logging.String("path", path),
		logging.String("addr", a.listenAddr),
	)

	return func() { _ = srv.Close() }, nil
}
