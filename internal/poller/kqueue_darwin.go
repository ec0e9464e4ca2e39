//go:build darwin

package poller

import "syscall"

const maxKqueueEvents = 1024

// kqueuePoller is a kqueue-based multiplexer. Read and write readiness are
// separate kqueue filters; Register and Modify both submit EV_ADD for the
// two filters, with EV_ENABLE or EV_DISABLE on each according to interest.
type kqueuePoller struct {
	kqfd   int
	events []syscall.Kevent_t
}

// New creates the platform Poller.
func New() (Poller, error) {
	kqfd, err := syscall.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueuePoller{
		kqfd:   kqfd,
		events: make([]syscall.Kevent_t, maxKqueueEvents),
	}, nil
}

func (p *kqueuePoller) apply(fd int, interest Interest) error {
	readFlags := uint16(syscall.EV_ADD)
	if interest.Has(Readable) {
		readFlags |= syscall.EV_ENABLE
	} else {
		readFlags |= syscall.EV_DISABLE
	}

	writeFlags := uint16(syscall.EV_ADD)
	if interest.Has(Writable) {
		writeFlags |= syscall.EV_ENABLE
	} else {
		writeFlags |= syscall.EV_DISABLE
	}

	changes := []syscall.Kevent_t{
		{Ident: uint64(fd), Filter: syscall.EVFILT_READ, Flags: readFlags},
		{Ident: uint64(fd), Filter: syscall.EVFILT_WRITE, Flags: writeFlags},
	}
	_, err := syscall.Kevent(p.kqfd, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Register(fd int, interest Interest) error {
	return p.apply(fd, interest)
}

func (p *kqueuePoller) Modify(fd int, interest Interest) error {
	return p.apply(fd, interest)
}

func (p *kqueuePoller) Deregister(fd int) error {
	changes := []syscall.Kevent_t{
		{Ident: uint64(fd), Filter: syscall.EVFILT_READ, Flags: syscall.EV_DELETE},
		{Ident: uint64(fd), Filter: syscall.EVFILT_WRITE, Flags: syscall.EV_DELETE},
	}
	_, err := syscall.Kevent(p.kqfd, changes, nil, nil)
	if err == syscall.ENOENT || err == syscall.EBADF {
		return nil
	}
	return err
}

func (p *kqueuePoller) Wait(timeoutMillis int) ([]Event, error) {
	var ts *syscall.Timespec
	if timeoutMillis >= 0 {
		ts = &syscall.Timespec{
			Sec:  int64(timeoutMillis / 1000),
			Nsec: int64((timeoutMillis % 1000) * 1000000),
		}
	}

	n, err := syscall.Kevent(p.kqfd, nil, p.events, ts)
	if err == syscall.EINTR {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	byFd := make(map[int]Interest, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Ident)
		in, seen := byFd[fd]
		if !seen {
			order = append(order, fd)
		}
		switch ev.Filter {
		case syscall.EVFILT_READ:
			in |= Readable
		case syscall.EVFILT_WRITE:
			in |= Writable
		}
		if ev.Flags&syscall.EV_EOF != 0 {
			in |= Hangup
		}
		if ev.Flags&syscall.EV_ERROR != 0 {
			in |= Err
		}
		byFd[fd] = in
	}

	out := make([]Event, 0, len(order))
	for _, fd := range order {
		out = append(out, Event{Fd: fd, Events: byFd[fd]})
	}
	return out, nil
}

func (p *kqueuePoller) Close() error {
	return syscall.Close(p.kqfd)
}
