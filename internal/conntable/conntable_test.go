package conntable

import (
	"os"
	"testing"

	"github.com/hyperreactor/reactord/internal/poller"
)

type fakePoller struct {
	deregistered []int
}

func (f *fakePoller) Register(fd int, interest poller.Interest) error { return nil }
func (f *fakePoller) Modify(fd int, interest poller.Interest) error   { return nil }
func (f *fakePoller) Deregister(fd int) error {
	f.deregistered = append(f.deregistered, fd)
	return nil
}
func (f *fakePoller) Wait(timeoutMillis int) ([]poller.Event, error) { return nil, nil }
func (f *fakePoller) Close() error                                  { return nil }

// openPipeFD returns a real, closeable descriptor so Table.Close's
// syscall.Close call has something valid to operate on.
func openPipeFD(t *testing.T) int {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return int(r.Fd())
}

func TestTryInsertRespectsCap(t *testing.T) {
	tbl := New(1)
	c1 := &Connection{FD: openPipeFD(t)}
	c2 := &Connection{FD: openPipeFD(t)}

	if !tbl.TryInsert(c1) {
		t.Fatal("first insert should succeed")
	}
	if tbl.TryInsert(c2) {
		t.Fatal("second insert should fail once at capacity")
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 live connection, got %d", tbl.Len())
	}
}

func TestGetThenClosedIsAbsent(t *testing.T) {
	tbl := New(10)
	fd := openPipeFD(t)
	c := &Connection{FD: fd}
	tbl.TryInsert(c)

	p := &fakePoller{}
	tbl.Close(fd, p)

	if _, ok := tbl.Get(fd); ok {
		t.Fatal("expected connection to be gone after Close")
	}
	if len(p.deregistered) != 1 || p.deregistered[0] != fd {
		t.Fatalf("expected fd %d deregistered, got %v", fd, p.deregistered)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tbl := New(10)
	fd := openPipeFD(t)
	tbl.TryInsert(&Connection{FD: fd})

	p := &fakePoller{}
	tbl.Close(fd, p)
	tbl.Close(fd, p) // must not panic or double-deregister

	if len(p.deregistered) != 1 {
		t.Fatalf("expected exactly one deregister call, got %d", len(p.deregistered))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tbl := New(10)
	tbl.TryInsert(&Connection{FD: openPipeFD(t)})
	tbl.TryInsert(&Connection{FD: openPipeFD(t)})

	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 connections in snapshot, got %d", len(snap))
	}

	tbl.Close(snap[0].FD, &fakePoller{})
	if tbl.Len() != 1 {
		t.Fatalf("expected table to reflect the close, got %d", tbl.Len())
	}
	if len(snap) != 2 {
		t.Fatal("snapshot must not be affected by subsequent table mutation")
	}
}
