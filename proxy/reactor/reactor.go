/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package reactor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nabbar/sniproxy/ioutils"
	liblog "github.com/nabbar/sniproxy/logger"
	"github.com/nabbar/sniproxy/proxy/connection"
	"github.com/nabbar/sniproxy/proxy/listener"
)

const maxEpollEvents = 256

// fdWatcher identifies which Connection half an epoll-reported fd belongs
// to, so the dispatch loop can recover context from a bare file descriptor —
// the systems-level analogue of the self-referential watcher back-pointer
// the design notes call out, expressed here as a map lookup instead of a raw
// pointer stashed in the kernel event.
type fdWatcher struct {
	conn *connection.Connection
	side connection.Side
}

// connWatch tracks which fds are currently registered with epoll for one
// Connection's two halves, and what interest each was last armed with, so
// the reactor only issues epoll_ctl when something actually changed.
type connWatch struct {
	clientFD       int
	serverFD       int
	clientInterest connection.Interest
	serverInterest connection.Interest
}

// Reactor is the single-threaded event loop: one epoll instance, the
// connection registry, and the set of accept listeners feeding it. All of
// Run executes on the calling goroutine; nothing here is safe to call
// concurrently from another goroutine, matching §5's cooperative scheduling
// model.
type Reactor struct {
	epfd int

	reg       *Registry
	listeners map[int]*listener.Listener
	fds       map[int]*fdWatcher
	watches   map[*connection.Connection]*connWatch

	bufCap int
	log    liblog.FuncLog

	mu sync.Mutex // guards listeners/fds against RegisterListener during Run
}

// New creates an epoll instance and an empty Reactor. bufCap sizes every
// Connection's ring buffers; 0 uses buffer.DefaultCapacity.
func New(bufCap int, log liblog.FuncLog) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{
		epfd:      epfd,
		reg:       NewRegistry(),
		listeners: make(map[int]*listener.Listener),
		fds:       make(map[int]*fdWatcher),
		watches:   make(map[*connection.Connection]*connWatch),
		bufCap:    bufCap,
		log:       log,
	}, nil
}

// Registry exposes the live-connection collection, mainly for diagnostics
// (print_connections) and tests.
func (r *Reactor) Registry() *Registry {
	return r.reg
}

// PrintConnections implements spec.md §6's debug-dump interface: it writes
// a snapshot of every live connection to a fresh temporary file, logs the
// file's path, and returns that path to the caller. Each line encodes the
// connection's state and both halves' buffer occupancy. Safe to call from
// outside Run (e.g. a signal handler wired up by an operator), since it only
// reads the registry rather than mutating reactor state.
func (r *Reactor) PrintConnections() (string, error) {
	f, e := ioutils.NewTempFile()
	if e != nil {
		return "", fmt.Errorf("reactor: print_connections: %w", e)
	}
	path := ioutils.GetTempFilePath(f)

	err := r.reg.dump(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("reactor: print_connections: %w", err)
	}

	if r.log != nil {
		if l := r.log(); l != nil {
			l.Info("print_connections: registry snapshot written", nil, path)
		}
	}
	return path, nil
}

// RegisterListener arms l's accept socket for read readiness. Must be
// called before Run, or from within a Run callback.
func (r *Reactor) RegisterListener(l *listener.Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners[l.FD()] = l
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, l.FD(), &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(l.FD()),
	})
}

// Run drives the event loop until ctx is cancelled. On return every live
// Connection has been forced closed via the registry's shutdown path (§4.5),
// and is therefore safe to call exactly once per Reactor.
func (r *Reactor) Run(ctx context.Context) error {
	defer r.shutdown()

	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := unix.EpollWait(r.epfd, events, 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			mask := events[i].Events

			r.mu.Lock()
			l, isListener := r.listeners[fd]
			fw, isConn := r.fds[fd]
			r.mu.Unlock()

			switch {
			case isListener:
				r.acceptAll(l)
			case isConn:
				r.dispatch(fw, mask)
			}
		}
	}
}

// acceptAll drains every connection currently pending on l's accept queue,
// per the level-triggered contract: one readiness event may represent
// several queued peers.
func (r *Reactor) acceptAll(l *listener.Listener) {
	for {
		fd, peer, err := l.Accept()
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				r.logError("accept", err)
			}
			return
		}

		c := connection.New(fd, peer, l, r.bufCap, r.log)
		r.reg.Insert(c)
		r.watches[c] = &connWatch{clientFD: -1, serverFD: -1}
		r.syncInterest(c)
	}
}

func (r *Reactor) dispatch(fw *fdWatcher, mask uint32) {
	c := fw.conn

	if mask&unix.EPOLLIN != 0 {
		if err := c.OnReadable(fw.side); err != nil {
			r.logError(fmt.Sprintf("%s readable", fw.side), err)
		}
	}
	if mask&(unix.EPOLLOUT) != 0 && !c.IsClosed() {
		if err := c.OnWritable(fw.side); err != nil {
			r.logError(fmt.Sprintf("%s writable", fw.side), err)
		}
	}
	if mask&(unix.EPOLLHUP|unix.EPOLLERR) != 0 && !c.IsClosed() {
		// Treat a hangup/error notification like a readable event: the
		// half's own recv will observe the 0-byte EOF or fatal errno and
		// drive the normal half-close transition.
		if err := c.OnReadable(fw.side); err != nil {
			r.logError(fmt.Sprintf("%s hangup", fw.side), err)
		}
	}

	r.reg.Touch(c)

	if c.IsClosed() {
		r.teardown(c)
		return
	}
	r.syncInterest(c)
}

// syncInterest recomputes both halves' desired Interest and issues whatever
// epoll_ctl calls are needed to match: ADD for a newly opened fd (the server
// half appearing after RESOLVED→CONNECTED), MOD when desired interest
// changed, DEL when a half closed.
func (r *Reactor) syncInterest(c *connection.Connection) {
	w, ok := r.watches[c]
	if !ok {
		w = &connWatch{clientFD: -1, serverFD: -1}
		r.watches[c] = w
	}

	r.syncHalf(c, connection.SideClient, c.ClientFD(), &w.clientFD, &w.clientInterest)
	r.syncHalf(c, connection.SideServer, c.ServerFD(), &w.serverFD, &w.serverInterest)
}

func (r *Reactor) syncHalf(c *connection.Connection, side connection.Side, curFD int, trackedFD *int, trackedInterest *connection.Interest) {
	if *trackedFD != -1 && *trackedFD != curFD {
		r.epollDel(*trackedFD)
		*trackedFD = -1
		*trackedInterest = connection.InterestNone
	}

	if curFD == -1 {
		return
	}

	desired := c.Interest(side)

	if *trackedFD == -1 {
		if desired == connection.InterestNone {
			return
		}
		r.mu.Lock()
		r.fds[curFD] = &fdWatcher{conn: c, side: side}
		r.mu.Unlock()
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, curFD, epollEvent(curFD, desired)); err != nil {
			r.logError("epoll_ctl add", err)
			return
		}
		*trackedFD = curFD
		*trackedInterest = desired
		return
	}

	if desired == *trackedInterest {
		return
	}
	if desired == connection.InterestNone {
		r.epollDel(curFD)
		*trackedFD = -1
		*trackedInterest = connection.InterestNone
		return
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, curFD, epollEvent(curFD, desired)); err != nil {
		r.logError("epoll_ctl mod", err)
		return
	}
	*trackedInterest = desired
}

func (r *Reactor) epollDel(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	r.mu.Lock()
	delete(r.fds, fd)
	r.mu.Unlock()
}

func epollEvent(fd int, i connection.Interest) *unix.EpollEvent {
	var mask uint32
	if i.Readable() {
		mask |= unix.EPOLLIN
	}
	if i.Writable() {
		mask |= unix.EPOLLOUT
	}
	return &unix.EpollEvent{Events: mask, Fd: int32(fd)}
}

func (r *Reactor) teardown(c *connection.Connection) {
	if w, ok := r.watches[c]; ok {
		if w.clientFD != -1 {
			r.epollDel(w.clientFD)
		}
		if w.serverFD != -1 {
			r.epollDel(w.serverFD)
		}
		delete(r.watches, c)
	}
	r.reg.Remove(c)
}

// shutdown implements §4.5: force-close every remaining connection and
// every listener, after the loop has stopped dispatching events.
func (r *Reactor) shutdown() {
	r.reg.FreeAll()
	for fd, l := range r.listeners {
		_ = l.Close()
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	_ = unix.Close(r.epfd)
}

func (r *Reactor) logError(op string, err error) {
	if r.log == nil || err == nil {
		return
	}
	if l := r.log(); l != nil {
		l.Error("reactor: "+op, err, nil)
	}
}
