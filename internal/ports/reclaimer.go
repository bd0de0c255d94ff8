// Package ports frees TCP ports held by other processes. It is used at
// startup for the service's own listening port, so a restart over a stale
// instance is idempotent, and transiently for port 80 during certificate
// issuance.
package ports

import (
	"fmt"
	"strings"
	"time"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
)

// Grace periods between termination phases.
const (
	termGrace = 2 * time.Second
	killGrace = 1 * time.Second
)

// Occupant is a process currently bound to a port. The view is transient:
// it is recomputed on every enumeration, never cached.
type Occupant struct {
	PID  int32
	Name string
}

func (o Occupant) String() string {
	if o.Name == "" {
		return fmt.Sprintf("pid %d", o.PID)
	}
	return fmt.Sprintf("%s (pid %d)", o.Name, o.PID)
}

// Enumerator lists the processes listening on a port.
type Enumerator interface {
	Occupants(port int) ([]Occupant, error)
}

// Signaler delivers termination signals to a process.
type Signaler interface {
	Terminate(pid int32) error
	Kill(pid int32) error
}

// sysEnumerator enumerates via the OS connection table.
type sysEnumerator struct{}

func (sysEnumerator) Occupants(port int) ([]Occupant, error) {
	conns, err := gnet.Connections("tcp")
	if err != nil {
		return nil, errors.ProvisioningError("failed to enumerate connections", err)
	}

	seen := make(map[int32]bool)
	var occupants []Occupant
	for _, conn := range conns {
		if conn.Laddr.Port != uint32(port) || conn.Status != "LISTEN" {
			continue
		}
		if conn.Pid == 0 || seen[conn.Pid] {
			continue
		}
		seen[conn.Pid] = true

		name := ""
		if proc, err := process.NewProcess(conn.Pid); err == nil {
			if n, err := proc.Name(); err == nil {
				name = n
			}
		}
		occupants = append(occupants, Occupant{PID: conn.Pid, Name: name})
	}

	return occupants, nil
}

// sysSignaler signals real processes.
type sysSignaler struct{}

func (sysSignaler) Terminate(pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return proc.Terminate()
}

func (sysSignaler) Kill(pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// Reclaimer frees ports: graceful signal first, forceful second, failure
// reported with the surviving occupants.
type Reclaimer struct {
	enum      Enumerator
	sig       Signaler
	logger    logging.Logger
	termGrace time.Duration
	killGrace time.Duration
}

// NewReclaimer creates a reclaimer backed by the OS process table.
func NewReclaimer(logger logging.Logger) *Reclaimer {
	return NewReclaimerWith(sysEnumerator{}, sysSignaler{}, logger)
}

// NewReclaimerWith creates a reclaimer with injected enumeration and
// signaling, for tests.
func NewReclaimerWith(enum Enumerator, sig Signaler, logger logging.Logger) *Reclaimer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Reclaimer{
		enum:      enum,
		sig:       sig,
		logger:    logger,
		termGrace: termGrace,
		killGrace: killGrace,
	}
}

// Occupants returns the processes currently listening on the port.
func (r *Reclaimer) Occupants(port int) ([]Occupant, error) {
	return r.enum.Occupants(port)
}

// Reclaim frees the port. An already-free port succeeds immediately with no
// signals sent. Otherwise occupants get SIGTERM, a grace period, then
// SIGKILL for stragglers; if the port is still held afterwards the error
// names the survivors.
func (r *Reclaimer) Reclaim(port int) error {
	occupants, err := r.enum.Occupants(port)
	if err != nil {
		return err
	}
	if len(occupants) == 0 {
		return nil
	}

	r.logger.Info("Reclaiming port",
		logging.Int("port", port),
		logging.Any("occupants", describe(occupants)),
	)

	for _, occ := range occupants {
		if err := r.sig.Terminate(occ.PID); err != nil {
			r.logger.Warn("Graceful termination signal failed",
				logging.Int("pid", int(occ.PID)),
				logging.Err(err),
			)
		}
	}
	time.Sleep(r.termGrace)

	occupants, err = r.enum.Occupants(port)
	if err != nil {
		return err
	}
	if len(occupants) == 0 {
		return nil
	}

	for _, occ := range occupants {
		r.logger.Warn("Forcing termination",
			logging.Int("port", port),
			logging.Int("pid", int(occ.PID)),
		)
		if err := r.sig.Kill(occ.PID); err != nil {
			r.logger.Warn("Forceful termination signal failed",
				logging.Int("pid", int(occ.PID)),
				logging.Err(err),
			)
		}
	}
	time.Sleep(r.killGrace)

	occupants, err = r.enum.Occupants(port)
	if err != nil {
		return err
	}
	if len(occupants) == 0 {
		return nil
	}

	return errors.ProvisioningError(
		fmt.Sprintf("port %d still occupied by %s", port, strings.Join(describe(occupants), ", ")),
		nil,
	)
}

func describe(occupants []Occupant) []string {
	names := make([]string, len(occupants))
	for i, occ := range occupants {
		names[i] = occ.String()
	}
	return names
}
