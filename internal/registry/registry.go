// Package registry is the sole owner of the service-binding map and the
// port-allocation cursor. Everything else in unportd — the control server,
// the data plane, the startup sweep — only ever talks to a *Registry.
package registry

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"os"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/stanley-fork/unport/internal/config"
	"github.com/stanley-fork/unport/internal/unporterr"
)

// Binding is one registered service: a domain bound to a loopback port
// owned by a child process.
type Binding struct {
	Domain    string `json:"domain"`
	Port      uint16 `json:"port"`
	Pid       int    `json:"pid"`
	Directory string `json:"directory"`
}

// Registry holds the in-memory binding map and the port cursor. All
// mutation goes through a single sync.RWMutex; the hot path (data-plane
// lookup) only ever takes the read lock and never touches disk.
type Registry struct {
	path string

	mu       sync.RWMutex
	bindings map[string]Binding
	nextPort uint16
}

// Load reads path if present, tolerating absence or corruption by starting
// empty. The port cursor is derived from the loaded bindings, never
// persisted directly.
func Load(path string) *Registry {
	r := &Registry{
		path:     path,
		bindings: make(map[string]Binding),
		nextPort: config.PortMin,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("registry: read %s: %v (starting empty)", path, err)
		}
		return r
	}

	var loaded map[string]Binding
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("registry: parse %s: %v (starting empty)", path, err)
		return r
	}

	r.bindings = loaded
	r.nextPort = config.PortMin
	for _, b := range loaded {
		if b.Port >= r.nextPort {
			r.nextPort = b.Port + 1
		}
	}
	if r.nextPort > config.PortMax {
		r.nextPort = config.PortMin
	}
	return r
}

// save rewrites the on-disk snapshot atomically (temp file + rename) so
// readers never observe a partial write. Must be called with mu held; the
// live map is marshaled directly, without a separate copy.
func (r *Registry) save() error {
	tmp := r.path + ".tmp"
	data, err := json.MarshalIndent(r.bindings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// persist saves and logs-and-swallows any failure: in-memory state remains
// authoritative for the current session.
func (r *Registry) persist() {
	if err := r.save(); err != nil {
		log.Printf("registry: persist %s: %v", r.path, err)
	}
}

// AllocatePort returns a port that is currently bindable on 127.0.0.1, ::1,
// and 0.0.0.0, advancing the cursor past it. Probing is best-effort and
// racy with the child's later bind — that race is accepted by design. If a
// full cycle of the port window finds nothing free, the current cursor
// value is returned anyway; the child's own bind attempt will surface the
// failure (PortExhaustion is advisory only, never a hard failure).
func (r *Registry) AllocatePort() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.nextPort
	for {
		port := r.nextPort
		r.nextPort++
		if r.nextPort > config.PortMax {
			r.nextPort = config.PortMin
		}

		if isPortAvailable(port) {
			return port
		}

		if r.nextPort == start {
			return r.nextPort
		}
	}
}

// isPortAvailable checks 127.0.0.1, ::1, and 0.0.0.0, since a dev server may
// bind to any of them. The IPv6 wildcard :: is deliberately not probed;
// ::1 already exercises the IPv6 stack on a loopback-only host.
func isPortAvailable(port uint16) bool {
	for _, host := range []string{"127.0.0.1", "::1", "0.0.0.0"} {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
		if err != nil {
			return false
		}
		ln.Close()
	}
	return true
}

// Register inserts a new binding, failing with ErrDomainTaken if the domain
// already exists. Persists on success.
func (r *Registry) Register(b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[b.Domain]; exists {
		return unporterr.ErrDomainTaken
	}
	r.bindings[b.Domain] = b
	r.persist()
	return nil
}

// Unregister removes and returns the binding for domain, or ErrNotFound.
// Persists on success.
func (r *Registry) Unregister(domain string) (Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[domain]
	if !ok {
		return Binding{}, unporterr.ErrNotFound
	}
	delete(r.bindings, domain)
	r.persist()
	return b, nil
}

// Lookup returns the binding for domain, read-only.
func (r *Registry) Lookup(domain string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[domain]
	return b, ok
}

// List returns a snapshot copy of all bindings, in unspecified order.
func (r *Registry) List() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	return out
}

// SweepDead removes every binding whose pid is no longer alive, persisting
// once at the end. Safe to call repeatedly (idempotent).
func (r *Registry) SweepDead() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []string
	for domain, b := range r.bindings {
		if !isProcessAlive(b.Pid) {
			dead = append(dead, domain)
		}
	}
	if len(dead) == 0 {
		return
	}
	for _, domain := range dead {
		log.Printf("registry: sweeping dead service %s", domain)
		delete(r.bindings, domain)
	}
	r.persist()
}

// isProcessAlive sends signal 0 to pid. A nil error or EPERM (process
// exists but is owned by another user, e.g. a daemon started via sudo)
// both mean "alive"; ESRCH ("no such process") means dead.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
