// Package certs acquires the TLS material the listener starts from. The
// decision chain runs exactly once at startup; the resulting bundle is
// read-only for the remainder of process life.
package certs

import (
	"context"
	"os"

	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
	"mingmong/internal/config"
	"mingmong/internal/ports"
)

// Source identifies where a certificate bundle came from.
type Source string

const (
	// SourceSelfSigned marks a locally generated certificate.
	SourceSelfSigned Source = "self-signed"
	// SourcePublicAuto marks an automatically issued public certificate.
	SourcePublicAuto Source = "public-auto"
	// SourceExternal marks operator-supplied certificate files.
	SourceExternal Source = "external"
)

// State names the provisioning state machine's positions. NoTLS, SelfSigned,
// External and PublicAutoIssued are acceptable steady states for the
// listener to start from.
type State string

const (
	StateNoTLS             State = "no_tls"
	StateSelfSigned        State = "self_signed"
	StateExternal          State = "external"
	StatePublicAutoPending State = "public_auto_pending"
	StatePublicAutoIssued  State = "public_auto_issued"
)

// Bundle is the certificate material the server starts with. Created once
// by Provision and read-only afterwards; never persisted beyond the files
// it points at.
type Bundle struct {
	CertFile string
	KeyFile  string
	Source   Source
}

// PauseFunc temporarily halts a known competing service on port 80 and
// returns a function that resumes it. The orchestration layer wires this
// when it manages such a service; nil means none is known.
type PauseFunc func(ctx context.Context) (resume func(), err error)

// Provisioner walks the TLS bootstrap decision chain.
type Provisioner struct {
	cfg       *config.Config
	reclaimer *ports.Reclaimer
	issuer    Issuer
	lookupIP  PublicIPFunc
	pause     PauseFunc
	logger    logging.Logger
	state     State
}

// NewProvisioner creates a provisioner backed by a real ACME client and
// public IP discovery.
func NewProvisioner(cfg *config.Config, reclaimer *ports.Reclaimer, logger logging.Logger) *Provisioner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Provisioner{
		cfg:       cfg,
		reclaimer: reclaimer,
		issuer:    newACMEIssuer(cfg.ACMEDirectoryURL, logger),
		lookupIP:  PublicIP,
		logger:    logger,
		state:     StateNoTLS,
	}
}

// NewProvisionerWith creates a provisioner with injected issuer, IP lookup
// and competitor pause hook, for tests and orchestration glue.
func NewProvisionerWith(cfg *config.Config, reclaimer *ports.Reclaimer, issuer Issuer, lookupIP PublicIPFunc, pause PauseFunc, logger logging.Logger) *Provisioner {
	p := NewProvisioner(cfg, reclaimer, logger)
	if issuer != nil {
		p.issuer = issuer
	}
	if lookupIP != nil {
		p.lookupIP = lookupIP
	}
	p.pause = pause
	return p
}

// State reports the provisioner's current state.
func (p *Provisioner) State() State {
	return p.state
}

// Provision runs the decision chain and returns the bundle the listener
// should start from. A nil bundle with nil error means plain HTTP. A
// PublicAuto failure falls back to self-signed rather than failing hard;
// only the operator disabling TLS entirely yields no bundle.
func (p *Provisioner) Provision(ctx context.Context) (*Bundle, error) {
	// Operator-supplied files that actually exist take precedence over any
	// issuance strategy.
	if p.cfg.TLSCertFile != "" && p.cfg.TLSKeyFile != "" {
		if fileExists(p.cfg.TLSCertFile) && fileExists(p.cfg.TLSKeyFile) {
			p.state = StateExternal
			return &Bundle{
				CertFile: p.cfg.TLSCertFile,
				KeyFile:  p.cfg.TLSKeyFile,
				Source:   SourceExternal,
			}, nil
		}
		p.logger.Warn("Configured TLS files not found, continuing decision chain",
			logging.String("cert_file", p.cfg.TLSCertFile),
			logging.String("key_file", p.cfg.TLSKeyFile),
		)
	}

	switch p.cfg.TLSMode {
	case config.TLSModeAuto:
		bundle, err := p.publicAuto(ctx)
		if err == nil {
			return bundle, nil
		}
		p.logger.Warn("Automatic certificate issuance failed, falling back to self-signed",
			logging.Err(err),
		)
		return p.selfSigned()

	case config.TLSModeSelfSigned:
		return p.selfSigned()
	}

	// TLS_MODE=none: the legacy ENABLE_TLS path expects server.crt and
	// server.key in the working directory, and silently disables TLS when
	// they are missing.
	if p.cfg.EnableTLS {
		if fileExists("server.crt") && fileExists("server.key") {
			p.state = StateExternal
			return &Bundle{CertFile: "server.crt", KeyFile: "server.key", Source: SourceExternal}, nil
		}
		p.logger.Warn("TLS requested but server.crt/server.key not found, TLS disabled")
	}

	p.state = StateNoTLS
	return nil, nil
}

// publicAuto derives a hostname, frees port 80, runs the bounded ACME
// exchange and installs the issued material.
func (p *Provisioner) publicAuto(ctx context.Context) (*Bundle, error) {
	p.state = StatePublicAutoPending

	domain, err := DeriveHostname(ctx, p.cfg.TLSDomain, p.lookupIP)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Requesting public certificate",
		logging.String("domain", domain),
	)

	// Best-effort pause of a known competing service; whatever still holds
	// port 80 afterwards is reclaimed outright.
	if p.pause != nil {
		resume, err := p.pause(ctx)
		if err != nil {
			p.logger.Warn("Failed to pause competing service on port 80",
				logging.Err(err),
			)
		} else {
			defer resume()
		}
	}

	if err := p.reclaimer.Reclaim(80); err != nil {
		return nil, err
	}

	issueCtx := ctx
	if timeout := p.cfg.ACMETimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		issueCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	certPEM, keyPEM, err := p.issuer.Issue(issueCtx, domain)
	if err != nil {
		if issueCtx.Err() == context.DeadlineExceeded {
			return nil, errors.TimeoutError("certificate issuance")
		}
		return nil, err
	}

	certFile, keyFile, err := p.install(certPEM, keyPEM)
	if err != nil {
		return nil, errors.ProvisioningError("failed to install issued certificate", err)
	}

	p.state = StatePublicAutoIssued
	return &Bundle{CertFile: certFile, KeyFile: keyFile, Source: SourcePublicAuto}, nil
}

func (p *Provisioner) selfSigned() (*Bundle, error) {
	hosts := DefaultSANs()
	if p.cfg.TLSDomain != "" {
		hosts = append(hosts, p.cfg.TLSDomain)
	}

	certFile, keyFile, err := GenerateSelfSigned("", hosts)
	if err != nil {
		return nil, errors.ProvisioningError("self-signed certificate generation failed", err)
	}

	p.logger.Info("Generated self-signed certificate",
		logging.String("cert_file", certFile),
	)

	p.state = StateSelfSigned
	return &Bundle{CertFile: certFile, KeyFile: keyFile, Source: SourceSelfSigned}, nil
}

// install copies the issued material to locally readable paths.
func (p *Provisioner) install(certPEM, keyPEM []byte) (string, string, error) {
	certFile := p.cfg.TLSCertFile
	if certFile == "" {
		certFile = "server.crt"
	}
	keyFile := p.cfg.TLSKeyFile
	if keyFile == "" {
		keyFile = "server.key"
	}

	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
