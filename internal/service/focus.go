package service

import "sync"

// FocusTracker records which conversation the UI currently has open. The
// gateway writes it on navigation; the router reads it to decide whether an
// inbound message deserves a toast. Split out so both can depend on it
// without depending on each other.
type FocusTracker struct {
	mu   sync.Mutex
	peer int64 // 0 = nothing open
}

func NewFocusTracker() *FocusTracker {
	return &FocusTracker{}
}

func (f *FocusTracker) Set(peerID int64) {
	f.mu.Lock()
	f.peer = peerID
	f.mu.Unlock()
}

func (f *FocusTracker) Clear() {
	f.Set(0)
}

// Current implements router.FocusFunc.
func (f *FocusTracker) Current() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peer, f.peer != 0
}
