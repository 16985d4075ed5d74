package hashindex

import "sync/atomic"

// pool is a counted stack of free indices.
// top is the index of the last free element, -1 when empty.
type pool struct {
	ids []int32
	top atomic.Int32
}

func newPool(size int) *pool {
	p := &pool{ids: make([]int32, size)}
	p.reset()
	return p
}

func (p *pool) reset() {
	for i := range p.ids {
		p.ids[i] = int32(i)
	}
	p.top.Store(int32(len(p.ids)) - 1)
}

// pop removes one index. Safe for concurrent use with other pops.
func (p *pool) pop() (int32, bool) {
	top := p.top.Add(-1) + 1
	if top < 0 {
		p.top.Add(1)
		return 0, false
	}
	return p.ids[top], true
}

// push returns an index to the pool. Not safe for concurrent use.
func (p *pool) push(id int32) {
	top := p.top.Add(1)
	p.ids[top] = id
}

func (p *pool) len() int {
	return int(p.top.Load()) + 1
}

// free returns a copy of the free indices, bottom of the stack first.
func (p *pool) free() []int32 {
	n := p.len()
	out := make([]int32, n)
	copy(out, p.ids[:n])
	return out
}

func (p *pool) load(free []int32) {
	copy(p.ids, free)
	p.top.Store(int32(len(free)) - 1)
}
