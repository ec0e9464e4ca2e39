//go:build linux

package poller

import "syscall"

const maxEpollEvents = 1024

// epollPoller is an epoll-based multiplexer, level-triggered as assumed by
// the reactor's design (no EPOLLET).
type epollPoller struct {
	epfd   int
	events []syscall.EpollEvent
}

// New creates the platform Poller.
func New() (Poller, error) {
	epfd, err := syscall.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:   epfd,
		events: make([]syscall.EpollEvent, maxEpollEvents),
	}, nil
}

func toEpollEvents(interest Interest) uint32 {
	var ev uint32 = syscall.EPOLLRDHUP
	if interest.Has(Readable) {
		ev |= syscall.EPOLLIN
	}
	if interest.Has(Writable) {
		ev |= syscall.EPOLLOUT
	}
	return ev
}

func fromEpollEvents(ev uint32) Interest {
	var in Interest
	if ev&syscall.EPOLLIN != 0 {
		in |= Readable
	}
	if ev&syscall.EPOLLOUT != 0 {
		in |= Writable
	}
	if ev&(syscall.EPOLLHUP|syscall.EPOLLRDHUP) != 0 {
		in |= Hangup
	}
	if ev&syscall.EPOLLERR != 0 {
		in |= Err
	}
	return in
}

func (p *epollPoller) Register(fd int, interest Interest) error {
	ev := syscall.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) Modify(fd int, interest Interest) error {
	ev := syscall.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Deregister(fd int) error {
	err := syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_DEL, fd, nil)
	if err == syscall.ENOENT || err == syscall.EBADF {
		return nil
	}
	return err
}

func (p *epollPoller) Wait(timeoutMillis int) ([]Event, error) {
	n, err := syscall.EpollWait(p.epfd, p.events, timeoutMillis)
	if err == syscall.EINTR {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Event{
			Fd:     int(p.events[i].Fd),
			Events: fromEpollEvents(p.events[i].Events),
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return syscall.Close(p.epfd)
}
