// Package reactor implements the single-threaded readiness loop that owns
// every client socket's registration state and drives the
// Reading/Processing/Writing/KeepAliveIdle state machine. One goroutine
// calls Run; it accepts, reads, dispatches complete requests to the
// worker pool, and resumes partial writes under WRITABLE readiness.
package reactor

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hyperreactor/reactord/internal/apistatus"
	"github.com/hyperreactor/reactord/internal/bufpool"
	"github.com/hyperreactor/reactord/internal/conntable"
	"github.com/hyperreactor/reactord/internal/fileserver"
	"github.com/hyperreactor/reactord/internal/httpmsg"
	"github.com/hyperreactor/reactord/internal/poller"
	"github.com/hyperreactor/reactord/internal/ratelimit"
	"github.com/hyperreactor/reactord/internal/rlog"
	"github.com/hyperreactor/reactord/internal/workerpool"
)

// Config bounds the reactor's resource usage and timing.
type Config struct {
	MaxRequestBytes   int
	BufferSize        int
	ConnectionTimeout time.Duration
	PollTimeoutMillis int
}

// errConnLimit signals that the connection table is full; acceptOne's
// caller closes the fresh descriptor without inserting it.
var errConnLimit = errors.New("reactor: connection table at capacity")

// DefaultConfig returns the production defaults: 64 KiB request cap,
// 8 KiB read chunks, 30 s idle timeout, 1 s poll timeout.
func DefaultConfig() Config {
	return Config{
		MaxRequestBytes:   64 * 1024,
		BufferSize:        8192,
		ConnectionTimeout: 30 * time.Second,
		PollTimeoutMillis: 1000,
	}
}

// Reactor owns the listener, the multiplexer, and the connection table. A
// single call to Run drives the whole readiness loop; it returns once
// Shutdown has been called and the loop has observed it.
type Reactor struct {
	cfg Config

	listener *net.TCPListener
	lnFile   *os.File
	lnFD     int

	poller poller.Poller
	table  *conntable.Table
	pool   *workerpool.Pool
	rl     *ratelimit.Limiter

	files *fileserver.Responder
	api   *apistatus.Dispatcher
	bufs  *bufpool.Pool

	logger *rlog.Logger

	running atomic.Bool
	stopped chan struct{}
}

// Dependencies bundles the already-constructed collaborators a Reactor
// drives. Their lifetimes are owned by the caller, except the listener,
// which Shutdown closes.
type Dependencies struct {
	Table   *conntable.Table
	Pool    *workerpool.Pool
	Limiter *ratelimit.Limiter
	Files   *fileserver.Responder
	API     *apistatus.Dispatcher
	Logger  *rlog.Logger
}

// New binds addr (e.g. ":8080"), creates the OS multiplexer, and registers
// the listener for READABLE. Any failure here is a fatal startup error;
// callers are expected to exit non-zero.
func New(cfg Config, addr string, deps Dependencies) (*Reactor, error) {
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, err
	}

	lnFile, err := ln.File()
	if err != nil {
		ln.Close()
		return nil, err
	}
	lfd := int(lnFile.Fd())

	if err := syscall.SetNonblock(lfd, true); err != nil {
		lnFile.Close()
		ln.Close()
		return nil, err
	}

	p, err := poller.New()
	if err != nil {
		lnFile.Close()
		ln.Close()
		return nil, err
	}

	if err := p.Register(lfd, poller.Readable); err != nil {
		p.Close()
		lnFile.Close()
		ln.Close()
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = rlog.Default()
	}

	return &Reactor{
		cfg:      cfg,
		listener: ln,
		lnFile:   lnFile,
		lnFD:     lfd,
		poller:   p,
		table:    deps.Table,
		pool:     deps.Pool,
		rl:       deps.Limiter,
		files:    deps.Files,
		api:      deps.API,
		bufs:     bufpool.New(),
		logger:   logger,
		stopped:  make(chan struct{}),
	}, nil
}

// Addr reports the bound listener address, useful when the configured
// port was 0 (ephemeral, as in tests).
func (r *Reactor) Addr() net.Addr { return r.listener.Addr() }

// Run drives the readiness loop on the calling goroutine until Shutdown
// is invoked from elsewhere. It returns nil on a clean stop.
func (r *Reactor) Run() error {
	r.running.Store(true)
	defer close(r.stopped)

	for r.running.Load() {
		events, err := r.poller.Wait(r.cfg.PollTimeoutMillis)
		if err != nil {
			r.logger.Errorf("poller wait: %v", err)
			continue
		}

		for _, ev := range events {
			if ev.Fd == r.lnFD {
				r.acceptAll()
				continue
			}
			if ev.Events.Has(poller.Readable) || ev.Events.Has(poller.Hangup) || ev.Events.Has(poller.Err) {
				r.onReadable(ev.Fd)
			}
			if ev.Events.Has(poller.Writable) {
				r.onWritable(ev.Fd)
			}
		}

		r.reapIdle()
	}
	return nil
}

// Shutdown stops the readiness loop, waits for it to observe the stop,
// then closes every live connection and the listener. Callers must drain
// the worker pool first (pool.Shutdown): the pool stops accepting and
// finishes in-flight work while the reactor is still running to service
// any pending writes, and only then does the reactor itself stop and
// close every fd.
func (r *Reactor) Shutdown() {
	r.running.Store(false)
	<-r.stopped

	for _, conn := range r.table.Snapshot() {
		r.table.Close(conn.FD, r.poller)
	}

	r.poller.Close()
	r.lnFile.Close()
	r.listener.Close()
}

// acceptAll drains the listener until the kernel reports no more
// pending connections.
func (r *Reactor) acceptAll() {
	for {
		nfd, sa, err := syscall.Accept(r.lnFD)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return
			}
			if err == syscall.EINTR {
				continue
			}
			r.logger.Errorf("accept: %v", err)
			return
		}

		if err := r.acceptOne(nfd, sa); err != nil {
			syscall.Close(nfd)
		}
	}
}

func (r *Reactor) acceptOne(fd int, sa syscall.Sockaddr) error {
	if err := syscall.SetNonblock(fd, true); err != nil {
		return err
	}
	syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
	tv := syscall.NsecToTimeval(int64(r.cfg.ConnectionTimeout))
	syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv)

	if err := r.poller.Register(fd, poller.Readable); err != nil {
		return err
	}

	conn := &conntable.Connection{}
	conn.SetFD(fd)
	conn.RemoteAddr = sockaddrString(sa)
	conn.KeepAlive = true
	conn.ReadBuf = make([]byte, 0, r.cfg.BufferSize)

	if !r.table.TryInsert(conn) {
		r.poller.Deregister(fd)
		return errConnLimit
	}
	return nil
}

// onReadable performs one read, feeds the framing detector, and submits
// a worker task once a complete request has accumulated.
func (r *Reactor) onReadable(fd int) {
	conn, ok := r.table.Get(fd)
	if !ok {
		return
	}

	chunk := r.bufs.Get(r.cfg.BufferSize)
	defer r.bufs.Put(chunk)

	n, err := syscall.Read(fd, chunk)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return
		}
		r.table.Close(fd, r.poller)
		return
	}
	if n == 0 {
		r.table.Close(fd, r.poller)
		return
	}

	conn.Lock()
	if conn.State == conntable.StateClosed {
		conn.Unlock()
		return
	}

	conn.ReadBuf = append(conn.ReadBuf, chunk[:n]...)
	conn.LastActivity = time.Now()
	conn.State = conntable.StateReading

	if len(conn.ReadBuf) > r.cfg.MaxRequestBytes {
		conn.Unlock()
		r.table.Close(fd, r.poller)
		return
	}

	// A connection with a staged or half-sent response keeps its next
	// request buffered until the write drains; sendAttempt re-checks the
	// buffer on full drain. Responses on one connection stay strictly
	// serialized.
	dispatch := false
	if !conn.Processing && !conn.HasPendingWrite && httpmsg.DetectComplete(conn.ReadBuf) {
		conn.Processing = true
		conn.State = conntable.StateProcessing
		dispatch = true
	}
	conn.Unlock()

	if dispatch {
		if err := r.pool.Submit(func() { r.handleRequest(fd) }); err != nil {
			r.logger.Warnf("worker pool rejected task for fd %d: %v", fd, err)
		}
	}
}

// handleRequest runs on a worker goroutine: it parses the buffered
// request, builds a response, and stages it for the write path.
func (r *Reactor) handleRequest(fd int) {
	conn, ok := r.table.Get(fd)
	if !ok {
		return
	}

	conn.Lock()
	raw := append([]byte(nil), conn.ReadBuf...)
	remoteAddr := conn.RemoteAddr
	conn.Unlock()

	wire, keepAlive := r.buildResponse(raw, remoteAddr)

	conn.Lock()
	if conn.State == conntable.StateClosed {
		conn.Unlock()
		return
	}
	conn.KeepAlive = keepAlive
	conn.WriteBuf = wire
	conn.WriteOffset = 0
	conn.HasPendingWrite = true
	conn.ReadBuf = conn.ReadBuf[:0]
	conn.Processing = false
	conn.State = conntable.StateWriting
	conn.Unlock()

	r.sendAttempt(fd)
}

// buildResponse implements the worker path's request handling: parse,
// rate-limit, dispatch to the API or file responder, and serialize.
func (r *Reactor) buildResponse(raw []byte, remoteAddr string) (wire []byte, keepAlive bool) {
	req, err := httpmsg.ParseRequest(raw)
	if err != nil {
		return httpmsg.Build(httpmsg.Response{
			Status: 400, ContentType: "text/plain; charset=utf-8",
			Body: []byte("Bad Request"),
		}), false
	}

	if req.Method != "GET" && req.Method != "HEAD" {
		return httpmsg.Build(httpmsg.Response{
			Status: 405, ContentType: "text/plain; charset=utf-8",
			Body: []byte("Method Not Allowed"), KeepAlive: req.KeepAlive,
		}), req.KeepAlive
	}

	if r.rl != nil && !r.rl.Check(ratelimit.ClientKey(remoteAddr)) {
		return httpmsg.Build(httpmsg.Response{
			Status: 503, ContentType: "text/plain; charset=utf-8",
			Body: []byte("Service Unavailable"),
		}), false
	}

	var status int
	var contentType string
	var body []byte
	var extra map[string]string

	if strings.HasPrefix(req.Path, "/api/") {
		status, contentType, body = r.api.Handle(req.Path)
	} else {
		res := r.files.Handle(req.Path)
		status, contentType, body = res.Status, res.ContentType, res.Body
		if res.CacheHeader != "" {
			extra = map[string]string{"X-Cache": res.CacheHeader}
		}
	}

	resp := httpmsg.Response{
		Status:      status,
		ContentType: contentType,
		Body:        body,
		ExtraHeader: extra,
		KeepAlive:   req.KeepAlive,
		IsHead:      req.Method == "HEAD",
	}
	return httpmsg.Build(resp), req.KeepAlive
}

// sendAttempt drains WriteBuf from WriteOffset. On would-block it arms
// WRITABLE interest and returns; onWritable re-enters here later.
func (r *Reactor) sendAttempt(fd int) {
	conn, ok := r.table.Get(fd)
	if !ok {
		return
	}

	conn.Lock()
	defer conn.Unlock()

	if conn.State == conntable.StateClosed || !conn.HasPendingWrite {
		return
	}

	for conn.WriteOffset < len(conn.WriteBuf) {
		n, err := syscall.Write(fd, conn.WriteBuf[conn.WriteOffset:])
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				r.poller.Modify(fd, poller.Readable|poller.Writable)
				return
			}
			r.closeLocked(fd, conn)
			return
		}
		if n == 0 {
			r.closeLocked(fd, conn)
			return
		}
		conn.WriteOffset += n
		conn.LastActivity = time.Now()
	}

	conn.HasPendingWrite = false
	conn.WriteBuf = nil
	conn.WriteOffset = 0
	r.poller.Modify(fd, poller.Readable)

	if !conn.KeepAlive {
		r.closeLocked(fd, conn)
		return
	}
	conn.State = conntable.StateKeepAliveIdle
	conn.LastActivity = time.Now()

	// A pipelined request that arrived while the response was draining is
	// already buffered and will produce no further READABLE wakeup, so
	// dispatch it here.
	if !conn.Processing && httpmsg.DetectComplete(conn.ReadBuf) {
		conn.Processing = true
		conn.State = conntable.StateProcessing
		if err := r.pool.Submit(func() { r.handleRequest(fd) }); err != nil {
			conn.Processing = false
			r.logger.Warnf("worker pool rejected task for fd %d: %v", fd, err)
		}
	}
}

// closeLocked closes fd while the caller already holds conn's lock. It
// unlocks before calling Table.Close, which must not be invoked while
// holding the per-connection lock (table lock always comes first).
func (r *Reactor) closeLocked(fd int, conn *conntable.Connection) {
	conn.KeepAlive = false
	conn.HasPendingWrite = false
	conn.Unlock()
	r.table.Close(fd, r.poller)
	conn.Lock()
}

// onWritable re-enters the write path when WRITABLE readiness fires.
func (r *Reactor) onWritable(fd int) {
	r.sendAttempt(fd)
}

// reapIdle closes connections that have been idle past the connection
// timeout and have no write in flight.
func (r *Reactor) reapIdle() {
	now := time.Now()
	for _, conn := range r.table.Snapshot() {
		conn.Lock()
		idle := now.Sub(conn.LastActivity) > r.cfg.ConnectionTimeout
		pending := conn.HasPendingWrite
		conn.Unlock()

		if idle && !pending {
			r.table.Close(conn.FD, r.poller)
		}
	}
}

func sockaddrString(sa syscall.Sockaddr) string {
	switch v := sa.(type) {
	case *syscall.SockaddrInet4:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *syscall.SockaddrInet6:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	default:
		return ""
	}
}
