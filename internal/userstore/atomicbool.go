package userstore

import "sync/atomic"

// atomicBool is the indexReady flag: a volatile boolean written by the
// cluster-change thread and read by the poller, per §5.
type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) Load() bool     { return b.v.Load() }
func (b *atomicBool) Store(val bool) { b.v.Store(val) }
