// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package guard implements the consumption-ordering primitive shared
// by MultipartStream and PartReader: a chain of clonable tokens in
// which exactly one token is ever "current", so that stale or
// concurrently-held tokens can be told apart from the one a caller is
// actually supposed to be using right now.
//
// Go has no deterministic destructor, so unlike the Rc<Drop> scheme
// this package is ported from, a token's lifetime ends only when its
// holder calls Release explicitly. Callers are expected to Release a
// cloned token right after they are done with whatever it guards
// (typically: when a PartReader reaches EOF or is abandoned, which
// the owning stream drains on the caller's behalf).
package guard

import "sync"

// Token represents the right to access a shared resource at a given
// moment. A fresh tree starts with a single current root token;
// Clone mints a new current token descending from it. Releasing the
// current token restores currency to whichever token it was cloned
// from.
type Token struct {
	s        *state
	snapshot int64
	parent   int64
}

type state struct {
	mu      sync.Mutex
	counter int64 // monotonically increasing, never reused
	current int64 // snapshot of whichever token is current right now
	clean   bool
	wake    chan struct{}
}

// New creates a fresh guard chain and returns its root token.
func New() *Token {
	s := &state{
		counter: 1,
		current: 1,
		clean:   true,
		wake:    make(chan struct{}, 1),
	}
	return &Token{s: s, snapshot: 1, parent: 1}
}

// Clone mints a new current token descending from t. t is demoted;
// Current on t returns false from this point on, until the new token
// (or anything cloned from it) is released.
func (t *Token) Clone() *Token {
	t.s.mu.Lock()
	t.s.counter++
	n := t.s.counter
	t.s.current = n
	t.s.mu.Unlock()

	t.s.notify()
	return &Token{s: t.s, snapshot: n, parent: t.snapshot}
}

// Current reports whether t is the live token in its chain and the
// chain has not been marked unclean.
func (t *Token) Current() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.clean && t.s.current == t.snapshot
}

// Clean reports whether the chain is still healthy. A chain used
// only through Clone/Release/Current, as this package intends, never
// becomes unclean: every access-time violation already surfaces as
// Current returning false, which callers turn into NotConsumed
// themselves. Clean exists so that invariant stays checkable rather
// than merely assumed.
func (t *Token) Clean() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.clean
}

// Release ends t's participation in the chain. If t was current,
// currency is restored to whichever token t was cloned from — the
// expected, in-order case. Releasing a token that is not current,
// including the root, is a harmless no-op beyond waking anyone
// parked on Wait: the descendant that is still current keeps its
// currency, and the next access through it proceeds normally.
//
// NotConsumed is not signalled here; it is Current returning false at
// an actual access point (PartReader.Read, Stream.Next) that catches
// a caller using a token out of turn.
func (t *Token) Release() {
	t.s.mu.Lock()
	if t.s.current == t.snapshot {
		t.s.current = t.parent
	}
	t.s.mu.Unlock()

	t.s.notify()
}

// Wait returns a channel that receives a value after the next Clone
// or Release call on this chain. It never blocks and never closes; at
// most one pending notification is buffered, matching the "single-
// slot wake notifier" the spec calls for.
func (t *Token) Wait() <-chan struct{} {
	return t.s.wake
}

func (s *state) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
