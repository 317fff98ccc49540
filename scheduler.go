// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Channel is one of the independent compile pipelines.
type Channel int

const (
	// ChannelProject compiles the whole project for the live preview.
	ChannelProject Channel = iota
	// ChannelFile compiles the current tab for inspection.
	ChannelFile
)

var channels = [...]Channel{ChannelProject, ChannelFile}

// Event returns the request kind sent on the channel.
func (c Channel) Event() Event {
	if c == ChannelFile {
		return EventFileCompile
	}
	return EventProjectCompile
}

func (c Channel) String() string {
	if c == ChannelFile {
		return "file"
	}
	return "project"
}

// ChannelOf returns the channel carrying requests of kind ev.
func ChannelOf(ev Event) (Channel, bool) {
	switch ev {
	case EventProjectCompile:
		return ChannelProject, true
	case EventFileCompile:
		return ChannelFile, true
	}
	return 0, false
}

// LaneState is the scheduler state of one channel.
type LaneState int

const (
	StateIdle LaneState = iota
	StatePending
	StateInFlight
)

func (s LaneState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	}
	return "idle"
}

// RequestBuilder returns the request to send on ch, built from the latest
// state. Returning false skips the dispatch.
type RequestBuilder func(ch Channel) (Request, bool)

// PostFunc delivers a request to the worker.
type PostFunc func(ctx context.Context, req Request) error

type lane struct {
	state      LaneState
	active     bool
	dirty      bool // edited while in flight
	timer      *time.Timer
	armSeq     uint64 // invalidates timers that fired after being replaced
	latest     uint64 // id of the last request issued
	dispatched uint64
}

// Scheduler coalesces bursts of edits into compile requests: per channel it
// waits for a quiet window after the last edit, keeps at most one request in
// flight and drops responses that do not answer the latest request.
type Scheduler struct {
	ctx    context.Context
	window time.Duration
	build  RequestBuilder
	post   PostFunc
	logger *slog.Logger

	mu    sync.Mutex
	lanes [len(channels)]lane
}

// NewScheduler returns a scheduler with every channel inactive.
func NewScheduler(ctx context.Context, window time.Duration, build RequestBuilder, post PostFunc, logger *slog.Logger) *Scheduler {
	if window <= 0 {
		window = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{ctx: ctx, window: window, build: build, post: post, logger: logger}
}

// Activate turns a channel on or off. Turning a channel on schedules a
// compilation; turning it off drops a pending one. A request already in
// flight still completes.
func (s *Scheduler) Activate(ch Channel, on bool) {
	s.mu.Lock()
	l := &s.lanes[ch]
	if l.active == on {
		s.mu.Unlock()
		return
	}
	l.active = on
	if on {
		s.touchLocked(ch)
	} else {
		s.disarmLocked(l)
		l.dirty = false
		if l.state == StatePending {
			l.state = StateIdle
		}
	}
	s.mu.Unlock()
}

// Touch records an edit relevant to ch.
func (s *Scheduler) Touch(ch Channel) {
	s.mu.Lock()
	s.touchLocked(ch)
	s.mu.Unlock()
}

// TouchAll records an edit relevant to every channel.
func (s *Scheduler) TouchAll() {
	s.mu.Lock()
	for _, ch := range channels {
		s.touchLocked(ch)
	}
	s.mu.Unlock()
}

func (s *Scheduler) touchLocked(ch Channel) {
	l := &s.lanes[ch]
	if !l.active {
		return
	}
	switch l.state {
	case StateIdle, StatePending:
		l.state = StatePending
		s.armLocked(ch)
	case StateInFlight:
		l.dirty = true
	}
}

func (s *Scheduler) disarmLocked(l *lane) {
	l.armSeq++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (s *Scheduler) armLocked(ch Channel) {
	l := &s.lanes[ch]
	s.disarmLocked(l)
	seq := l.armSeq
	l.timer = time.AfterFunc(s.window, func() { s.fire(ch, seq) })
}

// fire dispatches the request of a channel whose quiet window elapsed.
func (s *Scheduler) fire(ch Channel, seq uint64) {
	s.mu.Lock()
	l := &s.lanes[ch]
	if l.armSeq != seq || l.state != StatePending || !l.active {
		s.mu.Unlock()
		return
	}
	l.timer = nil
	l.latest++
	id := l.latest
	l.state = StateInFlight
	s.mu.Unlock()

	req, ok := s.build(ch)
	if !ok {
		s.abort(ch, id)
		return
	}
	req.Event = ch.Event()
	req.ID = id

	s.mu.Lock()
	s.lanes[ch].dispatched++
	s.mu.Unlock()

	if err := s.post(s.ctx, req); err != nil {
		s.logger.Warn("Failed to post compile request", "channel", ch.String(), "id", id, "error", err)
		s.abort(ch, id)
	}
}

// abort returns a lane to idle when its request could not be sent.
func (s *Scheduler) abort(ch Channel, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &s.lanes[ch]
	if l.latest != id || l.state != StateInFlight {
		return
	}
	l.state = StateIdle
	if l.dirty && l.active {
		l.dirty = false
		l.state = StatePending
		s.armLocked(ch)
	}
}

// Complete records the response to an in-flight request. It returns false for
// responses that are stale or belong to no channel; callers must ignore those.
// An edit observed while the request was in flight schedules the next one.
func (s *Scheduler) Complete(resp Response) bool {
	ch, ok := ChannelOf(resp.Kind)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l := &s.lanes[ch]
	if l.state != StateInFlight || resp.ID != l.latest {
		s.logger.Debug("Dropping stale compile response", "channel", ch.String(), "id", resp.ID, "latest", l.latest)
		return false
	}
	l.state = StateIdle
	if l.dirty && l.active {
		l.dirty = false
		l.state = StatePending
		s.armLocked(ch)
	}
	return true
}

// State returns the current state of ch.
func (s *Scheduler) State(ch Channel) LaneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lanes[ch].state
}

// Dispatched returns how many requests ch has sent.
func (s *Scheduler) Dispatched(ch Channel) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lanes[ch].dispatched
}

// Stop cancels every pending timer. Channels stay in their current state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lanes {
		s.disarmLocked(&s.lanes[i])
		s.lanes[i].active = false
	}
}
