// Package dataplane is unportd's ingress: the plaintext (and optional TLS)
// listeners that route incoming connections to the backend bound to the
// request's Host header. Plain HTTP requests are forwarded with
// net/http/httputil.ReverseProxy; WebSocket upgrades are tunneled as raw
// bytes so framing is never touched.
package dataplane

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/stanley-fork/unport/internal/registry"
)

// Plane owns the data-plane listeners and routes every request against a
// *registry.Registry.
type Plane struct {
	reg *registry.Registry

	httpAddr  string
	httpsAddr string
	tlsConfig *tls.Config

	mu          sync.Mutex
	httpServer  *http.Server
	httpsServer *http.Server
}

// New returns a Plane listening on httpAddr, and additionally on httpsAddr
// with tlsConfig when tlsConfig is non-nil.
func New(reg *registry.Registry, httpAddr, httpsAddr string, tlsConfig *tls.Config) *Plane {
	return &Plane{reg: reg, httpAddr: httpAddr, httpsAddr: httpsAddr, tlsConfig: tlsConfig}
}

// Start begins serving in background goroutines and returns once both
// listeners are bound.
func (p *Plane) Start() error {
	handler := http.HandlerFunc(p.serveHTTP)

	httpLn, err := net.Listen("tcp", p.httpAddr)
	if err != nil {
		return fmt.Errorf("bind plaintext listener on %s (try running with elevated privileges for port 80): %w", p.httpAddr, err)
	}
	p.mu.Lock()
	p.httpServer = &http.Server{Addr: p.httpAddr, Handler: handler}
	srv := p.httpServer
	p.mu.Unlock()

	go func() {
		if err := srv.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			log.Printf("dataplane: plaintext server: %v", err)
		}
	}()
	log.Printf("dataplane: listening on http://%s", p.httpAddr)

	if p.tlsConfig == nil {
		return nil
	}

	httpsLn, err := net.Listen("tcp", p.httpsAddr)
	if err != nil {
		return fmt.Errorf("bind TLS listener on %s: %w", p.httpsAddr, err)
	}
	httpsLn = tls.NewListener(httpsLn, p.tlsConfig)

	p.mu.Lock()
	p.httpsServer = &http.Server{Addr: p.httpsAddr, Handler: handler, TLSConfig: p.tlsConfig}
	srv = p.httpsServer
	p.mu.Unlock()

	go func() {
		if err := srv.Serve(httpsLn); err != nil && err != http.ErrServerClosed {
			log.Printf("dataplane: TLS server: %v", err)
		}
	}()
	log.Printf("dataplane: listening on https://%s", p.httpsAddr)
	return nil
}

// Stop gracefully shuts down both listeners.
func (p *Plane) Stop(ctx context.Context) error {
	p.mu.Lock()
	httpSrv, httpsSrv := p.httpServer, p.httpsServer
	p.mu.Unlock()

	var firstErr error
	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if httpsSrv != nil {
		if err := httpsSrv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Plane) serveHTTP(w http.ResponseWriter, req *http.Request) {
	domain := hostOnly(req.Host)

	binding, ok := p.reg.Lookup(domain)
	if !ok {
		p.serveUnmatched(w, req, domain)
		return
	}

	if isWebSocketUpgrade(req) {
		p.tunnelWebSocket(w, req, fmt.Sprintf("127.0.0.1:%d", binding.Port))
		return
	}

	// "localhost" rather than 127.0.0.1 so the dialer walks both the IPv6
	// and IPv4 loopback addresses, whichever the backend actually bound.
	target := fmt.Sprintf("localhost:%d", binding.Port)
	targetURL := &url.URL{Scheme: "http", Host: target}
	proxy := &httputil.ReverseProxy{
		// Only the dial target changes; r.Host is left alone so the
		// backend sees the Host header the client sent.
		Director: func(r *http.Request) {
			r.URL.Scheme = targetURL.Scheme
			r.URL.Host = targetURL.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("dataplane: forward to %s (%s): %v", domain, target, err)
			http.Error(w, fmt.Sprintf("Bad Gateway: %v", err), http.StatusBadGateway)
		},
	}
	proxy.ServeHTTP(w, req)
}

func (p *Plane) tunnelWebSocket(w http.ResponseWriter, req *http.Request, target string) {
	backendConn, err := net.DialTimeout("tcp", target, 5*time.Second)
	if err != nil {
		http.Error(w, "WebSocket backend connection failed", http.StatusBadGateway)
		return
	}
	defer backendConn.Close()

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "WebSocket hijack not supported", http.StatusInternalServerError)
		return
	}
	clientConn, clientBuf, err := hj.Hijack()
	if err != nil {
		http.Error(w, "WebSocket hijack failed", http.StatusInternalServerError)
		return
	}
	defer clientConn.Close()

	// Forward the original upgrade request verbatim, including whatever the
	// client buffered before the hijack.
	if err := req.Write(backendConn); err != nil {
		return
	}
	if clientBuf.Reader.Buffered() > 0 {
		buffered := make([]byte, clientBuf.Reader.Buffered())
		clientBuf.Read(buffered)
		backendConn.Write(buffered)
	}

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(backendConn, clientConn)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(clientConn, backendConn)
		done <- struct{}{}
	}()
	<-done
}

// serveUnmatched handles requests for a domain with no registered binding:
// the kill API and dashboard for localhost/127.0.0.1, a 404 listing
// available services otherwise.
func (p *Plane) serveUnmatched(w http.ResponseWriter, req *http.Request, domain string) {
	if domain != "localhost" && domain != "127.0.0.1" {
		p.serveNotFound(w, domain)
		return
	}

	if strings.HasPrefix(req.URL.Path, "/api/kill/") {
		p.handleKill(w, req)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, dashboardData(p.reg.List())); err != nil {
		log.Printf("dataplane: render dashboard: %v", err)
	}
}

func (p *Plane) handleKill(w http.ResponseWriter, req *http.Request) {
	target := strings.TrimPrefix(req.URL.Path, "/api/kill/")
	if target == "" {
		http.Error(w, `{"error":"missing domain"}`, http.StatusBadRequest)
		return
	}

	binding, err := p.reg.Unregister(target)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"not found"}`)
		return
	}

	if err := syscall.Kill(binding.Pid, syscall.SIGTERM); err != nil {
		log.Printf("dataplane: signal pid %d for %s: %v", binding.Pid, target, err)
	}
	log.Printf("dataplane: killed %s", target)

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"ok":true}`)
}

func (p *Plane) serveNotFound(w http.ResponseWriter, domain string) {
	bindings := p.reg.List()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "unport: domain %q not found.\n\nAvailable services:\n", domain)
	if len(bindings) == 0 {
		fmt.Fprint(w, "  (none)\n")
		return
	}
	for _, b := range bindings {
		fmt.Fprintf(w, "  - http://%s\n", b.Domain)
	}
}

// hostOnly strips an optional :port suffix from a Host header.
func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
