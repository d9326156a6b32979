package expose

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"ap-tools/core/config"
	"ap-tools/core/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Proxy forwards raw TCP bytes to the Archipelago server. The TLS listener
// terminates TLS for clients that insist on wss:, the optional plaintext
// listener rebinds the same upstream onto another address for clients that
// only speak ws:.
type Proxy struct {
	cfg       config.ExposeConfig
	tlsConfig *tls.Config
	logger    *zap.Logger
	dialer    net.Dialer
	started   time.Time

	mu        sync.Mutex
	closed    bool
	listeners []*listener
	conns     map[net.Conn]struct{}

	wg sync.WaitGroup
}

type listener struct {
	name   string
	ln     net.Listener
	active atomic.Int64
	total  atomic.Int64
}

// ListenerStats is a point-in-time view of one listener.
type ListenerStats struct {
	Name   string `json:"name"`
	Addr   string `json:"addr"`
	Active int64  `json:"active_connections"`
	Total  int64  `json:"total_connections"`
}

// Status is the payload served on GET /status.
type Status struct {
	Upstream  string          `json:"upstream"`
	Uptime    string          `json:"uptime"`
	Listeners []ListenerStats `json:"listeners"`
}

// NewProxy validates the configuration and prepares the proxy. TLS material
// is loaded here so a bad path fails before anything listens.
func NewProxy(cfg config.ExposeConfig, logger *zap.Logger) (*Proxy, error) {
	if cfg.Upstream == "" {
		return nil, errors.New("upstream address is required")
	}
	if cfg.TLSListen == "" && cfg.PlainListen == "" {
		return nil, errors.New("nothing to expose, configure tls_listen or plain_listen")
	}

	p := &Proxy{
		cfg:     cfg,
		logger:  logger,
		dialer:  net.Dialer{Timeout: 10 * time.Second},
		started: time.Now(),
		conns:   map[net.Conn]struct{}{},
	}

	if cfg.TLSListen != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, errors.New("the tls listener requires cert_file and key_file")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("cannot load tls key pair: %w", err)
		}
		p.tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	return p, nil
}

// Start binds the configured listeners and begins accepting.
func (p *Proxy) Start() error {
	if p.tlsConfig != nil {
		ln, err := tls.Listen("tcp", p.cfg.TLSListen, p.tlsConfig)
		if err != nil {
			return fmt.Errorf("cannot listen on %s: %w", p.cfg.TLSListen, err)
		}
		p.addListener("tls", ln)
	}
	if p.cfg.PlainListen != "" {
		ln, err := net.Listen("tcp", p.cfg.PlainListen)
		if err != nil {
			return fmt.Errorf("cannot listen on %s: %w", p.cfg.PlainListen, err)
		}
		p.addListener("plain", ln)
	}

	for _, l := range p.listeners {
		p.logger.Info("Listening", zap.String("listener", l.name), zap.String("addr", l.ln.Addr().String()))
		p.wg.Add(1)
		go p.serve(l)
	}
	return nil
}

// Shutdown closes the listeners and every active connection, then waits for
// the connection handlers to drain.
func (p *Proxy) Shutdown() {
	p.mu.Lock()
	p.closed = true
	listeners := p.listeners
	conns := make([]net.Conn, 0, len(p.conns))
	for conn := range p.conns {
		conns = append(conns, conn)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l.ln.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}
	p.wg.Wait()
	p.logger.Info("Proxy stopped")
}

// Status reports uptime and per-listener connection counts.
func (p *Proxy) Status() Status {
	p.mu.Lock()
	listeners := p.listeners
	p.mu.Unlock()

	stats := make([]ListenerStats, 0, len(listeners))
	for _, l := range listeners {
		stats = append(stats, ListenerStats{
			Name:   l.name,
			Addr:   l.ln.Addr().String(),
			Active: l.active.Load(),
			Total:  l.total.Load(),
		})
	}
	return Status{
		Upstream:  p.cfg.Upstream,
		Uptime:    utils.FormatDuration(time.Since(p.started)),
		Listeners: stats,
	}
}

// Addr returns the bound address of the named listener, for tests and logs.
func (p *Proxy) Addr(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.listeners {
		if l.name == name {
			return l.ln.Addr().String()
		}
	}
	return ""
}

func (p *Proxy) addListener(name string, ln net.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, &listener{name: name, ln: ln})
}

func (p *Proxy) serve(l *listener) {
	defer p.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if p.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			p.logger.Warn("Accept failed", zap.String("listener", l.name), zap.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}
		l.total.Add(1)
		l.active.Add(1)
		p.wg.Add(1)
		go p.handle(l, conn)
	}
}

func (p *Proxy) handle(l *listener, client net.Conn) {
	defer p.wg.Done()
	defer l.active.Add(-1)

	logg := p.logger.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("listener", l.name),
		zap.String("remote", client.RemoteAddr().String()),
	)
	logg.Debug("Connection opened")

	if !p.track(client) {
		client.Close()
		return
	}
	defer p.untrack(client)
	defer client.Close()

	upstream, err := p.dialer.Dial("tcp", p.cfg.Upstream)
	if err != nil {
		logg.Warn("Cannot reach upstream", zap.String("upstream", p.cfg.Upstream), zap.Error(err))
		return
	}
	if !p.track(upstream) {
		upstream.Close()
		return
	}
	defer p.untrack(upstream)
	defer upstream.Close()

	var pumps sync.WaitGroup
	pumps.Add(2)
	var sent, received int64
	go pump(&pumps, upstream, client, &sent)
	go pump(&pumps, client, upstream, &received)
	pumps.Wait()

	logg.Debug("Connection closed", zap.Int64("bytes_sent", sent), zap.Int64("bytes_received", received))
}

// pump copies src into dst until EOF and then half-closes dst, so the other
// direction can still drain.
func pump(wg *sync.WaitGroup, dst, src net.Conn, copied *int64) {
	defer wg.Done()
	n, _ := io.Copy(dst, src)
	*copied = n
	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	} else {
		dst.Close()
	}
}

// track registers a connection for shutdown. It reports false when the
// proxy is already closing, in which case the caller must bail out.
func (p *Proxy) track(conn net.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.conns[conn] = struct{}{}
	return true
}

func (p *Proxy) untrack(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, conn)
}

func (p *Proxy) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
