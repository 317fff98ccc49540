// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 30 * time.Millisecond

type postRecorder struct {
	posted chan Request
	err    error
}

func newPostRecorder() *postRecorder {
	return &postRecorder{posted: make(chan Request, 16)}
}

func (p *postRecorder) post(ctx context.Context, req Request) error {
	if p.err != nil {
		return p.err
	}
	p.posted <- req
	return nil
}

func (p *postRecorder) next(t *testing.T) Request {
	t.Helper()
	select {
	case req := <-p.posted:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a request")
		return Request{}
	}
}

func (p *postRecorder) none(t *testing.T) {
	t.Helper()
	select {
	case req := <-p.posted:
		t.Fatalf("unexpected request %+v", req)
	case <-time.After(4 * testWindow):
	}
}

func staticBuilder(ch Channel) (Request, bool) {
	return Request{Tabs: []Tab{{Name: "main.tsx"}}}, true
}

func newTestScheduler(t *testing.T, build RequestBuilder, rec *postRecorder) *Scheduler {
	t.Helper()
	s := NewScheduler(context.Background(), testWindow, build, rec.post, nil)
	t.Cleanup(s.Stop)
	return s
}

func TestSchedulerCoalescesBurst(t *testing.T) {
	rec := newPostRecorder()
	s := newTestScheduler(t, staticBuilder, rec)
	s.Activate(ChannelProject, true)

	s.Touch(ChannelProject)
	s.Touch(ChannelProject)
	assert.Equal(t, StatePending, s.State(ChannelProject))

	req := rec.next(t)
	assert.Equal(t, EventProjectCompile, req.Event)
	assert.Equal(t, uint64(1), req.ID)
	assert.Equal(t, StateInFlight, s.State(ChannelProject))
	rec.none(t)
	assert.Equal(t, uint64(1), s.Dispatched(ChannelProject))
}

func TestSchedulerDebounceRestartsWindow(t *testing.T) {
	rec := newPostRecorder()
	s := NewScheduler(context.Background(), 100*time.Millisecond, staticBuilder, rec.post, nil)
	defer s.Stop()
	s.Activate(ChannelProject, true)

	start := time.Now()
	for i := 0; i < 3; i++ {
		time.Sleep(40 * time.Millisecond)
		s.Touch(ChannelProject)
	}
	rec.next(t)
	assert.GreaterOrEqual(t, time.Since(start), 220*time.Millisecond)
	assert.Equal(t, uint64(1), s.Dispatched(ChannelProject))
}

func TestSchedulerEditWhileInFlight(t *testing.T) {
	rec := newPostRecorder()
	s := newTestScheduler(t, staticBuilder, rec)
	s.Activate(ChannelProject, true)

	first := rec.next(t)
	s.Touch(ChannelProject)
	s.Touch(ChannelProject)
	rec.none(t)

	require.True(t, s.Complete(Response{Event: EventProjectCompile, Kind: EventProjectCompile, ID: first.ID}))
	assert.Equal(t, StatePending, s.State(ChannelProject))

	second := rec.next(t)
	assert.Equal(t, first.ID+1, second.ID)
	rec.none(t)

	require.True(t, s.Complete(Response{Event: EventError, Kind: EventProjectCompile, ID: second.ID}))
	assert.Equal(t, StateIdle, s.State(ChannelProject))
}

func TestSchedulerDiscardsStaleResponses(t *testing.T) {
	rec := newPostRecorder()
	s := newTestScheduler(t, staticBuilder, rec)
	s.Activate(ChannelProject, true)

	first := rec.next(t)
	s.Touch(ChannelProject)
	require.True(t, s.Complete(Response{Event: EventProjectCompile, Kind: EventProjectCompile, ID: first.ID}))
	second := rec.next(t)

	assert.False(t, s.Complete(Response{Event: EventProjectCompile, Kind: EventProjectCompile, ID: first.ID}), "old id")
	assert.False(t, s.Complete(Response{Event: EventProjectCompile, Kind: EventFileCompile, ID: second.ID}), "other channel")
	assert.False(t, s.Complete(Response{Event: EventError, Kind: "", ID: second.ID}), "no kind")
	assert.True(t, s.Complete(Response{Event: EventProjectCompile, Kind: EventProjectCompile, ID: second.ID}))
	assert.False(t, s.Complete(Response{Event: EventProjectCompile, Kind: EventProjectCompile, ID: second.ID}), "answered twice")
}

func TestSchedulerChannelsAreIndependent(t *testing.T) {
	rec := newPostRecorder()
	s := newTestScheduler(t, staticBuilder, rec)
	s.Activate(ChannelProject, true)
	rec.next(t)

	s.Activate(ChannelFile, true)
	req := rec.next(t)
	assert.Equal(t, EventFileCompile, req.Event)
	assert.Equal(t, uint64(1), req.ID)
	assert.Equal(t, StateInFlight, s.State(ChannelProject))
}

func TestSchedulerInactiveChannel(t *testing.T) {
	rec := newPostRecorder()
	s := newTestScheduler(t, staticBuilder, rec)

	s.Touch(ChannelFile)
	s.TouchAll()
	rec.none(t)
	assert.Equal(t, StateIdle, s.State(ChannelFile))

	s.Activate(ChannelFile, true)
	s.Activate(ChannelFile, false)
	rec.none(t)
	assert.Equal(t, StateIdle, s.State(ChannelFile))
}

func TestSchedulerDeactivateInFlight(t *testing.T) {
	rec := newPostRecorder()
	s := newTestScheduler(t, staticBuilder, rec)
	s.Activate(ChannelProject, true)
	first := rec.next(t)

	s.Touch(ChannelProject)
	s.Activate(ChannelProject, false)
	require.True(t, s.Complete(Response{Event: EventProjectCompile, Kind: EventProjectCompile, ID: first.ID}))
	rec.none(t)
	assert.Equal(t, StateIdle, s.State(ChannelProject))
}

func TestSchedulerBuilderSkips(t *testing.T) {
	rec := newPostRecorder()
	var calls atomic.Int32
	s := newTestScheduler(t, func(ch Channel) (Request, bool) {
		calls.Add(1)
		return Request{}, false
	}, rec)
	s.Activate(ChannelFile, true)

	rec.none(t)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateIdle, s.State(ChannelFile))
	assert.Equal(t, uint64(0), s.Dispatched(ChannelFile))
}

func TestSchedulerPostError(t *testing.T) {
	rec := newPostRecorder()
	rec.err = ErrBridgeClosed
	s := newTestScheduler(t, staticBuilder, rec)
	s.Activate(ChannelProject, true)

	require.Eventually(t, func() bool { return s.Dispatched(ChannelProject) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return s.State(ChannelProject) == StateIdle }, time.Second, time.Millisecond)
}

func TestChannelOf(t *testing.T) {
	for _, ch := range channels {
		got, ok := ChannelOf(ch.Event())
		assert.True(t, ok)
		assert.Equal(t, ch, got)
	}
	_, ok := ChannelOf(EventError)
	assert.False(t, ok)
	assert.Equal(t, "project", ChannelProject.String())
	assert.Equal(t, "in-flight", StateInFlight.String())
}
