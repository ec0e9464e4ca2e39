// Package bufpool implements a multi-tiered byte-slice pool for the
// reactor's per-read scratch buffers. There is no package-level
// singleton: every Pool is owned by whatever reactor or test
// constructs it.
package bufpool

import "sync"

// defaultSizes are the size classes pooled; a request larger than the
// biggest tier allocates directly and is never pooled.
var defaultSizes = []int{512, 2048, 8192, 32768}

// Pool is a multi-tiered byte slice pool for different size classes.
type Pool struct {
	pools []*sync.Pool
	sizes []int
}

// New creates a Pool with the standard HTTP-sized tiers.
func New() *Pool {
	return NewWithSizes(defaultSizes)
}

// NewWithSizes creates a Pool with custom size tiers, smallest first.
func NewWithSizes(sizes []int) *Pool {
	p := &Pool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}
	for i, size := range sizes {
		sz := size
		p.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}
	return p
}

// Get returns a slice of exactly the requested length, backed by a
// buffer from the smallest tier that fits.
func (p *Pool) Get(size int) []byte {
	for i, tier := range p.sizes {
		if size <= tier {
			bufPtr := p.pools[i].Get().(*[]byte)
			return (*bufPtr)[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the tier matching its capacity. A slice whose
// capacity doesn't exactly match a tier (never obtained from Get, or
// resliced beyond its tier) is left for the garbage collector.
func (p *Pool) Put(buf []byte) {
	capacity := cap(buf)
	for i, tier := range p.sizes {
		if capacity == tier {
			buf = buf[:capacity]
			p.pools[i].Put(&buf)
			return
		}
	}
}
