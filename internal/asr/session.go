package asr

import (
	"context"
	"sync"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// heartbeat bounds how long a cancelled session can outlive its
// client's disconnect before the underlying vendor stream is closed.
const heartbeat = 200 * time.Millisecond

// FrameKind discriminates the three message types a streaming ASR
// client may send.
type FrameKind string

const (
	FrameConfig      FrameKind = "config"
	FrameAudio       FrameKind = "audio"
	FrameEndOfStream FrameKind = "end_of_stream"
)

// Frame is one client message on a streaming ASR session.
type Frame struct {
	Kind   FrameKind
	Config domain.StreamConfig
	Audio  []byte
}

type sessionState int

const (
	sessionAwaitingConfig sessionState = iota
	sessionStreaming
	sessionDraining
	sessionClosed
)

// Session is a client-facing streaming ASR conversation. It enforces
// the frame ordering: Config must be the first frame, everything before
// it is rejected, and EndOfStream drains the vendor stream before the
// session closes. The underlying vendor Stream is only opened once a
// valid Config frame arrives.
type Session struct {
	mu    sync.Mutex
	state sessionState

	ctx    context.Context
	cancel context.CancelFunc
	proxy  *Proxy
	stream Stream

	out  chan sessionResult
	done chan struct{}
}

type sessionResult struct {
	segment domain.TranscriptSegment
	err     error
}

func newSession(ctx context.Context, proxy *Proxy) *Session {
	sctx, cancel := context.WithCancel(ctx)
	return &Session{
		state:  sessionAwaitingConfig,
		ctx:    sctx,
		cancel: cancel,
		proxy:  proxy,
		out:    make(chan sessionResult, 16),
		done:   make(chan struct{}),
	}
}

// HandleFrame applies one client frame to the session's state machine.
// Any frame other than Config before the vendor stream is open closes
// the session and returns a Validation error.
func (s *Session) HandleFrame(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case sessionClosed:
		return voicehiveerr.Validation("asr stream: frame received after close", nil)
	case sessionDraining:
		if frame.Kind != FrameEndOfStream {
			return voicehiveerr.Validation("asr stream: no frames accepted while draining", nil)
		}
		return nil
	case sessionAwaitingConfig:
		if frame.Kind != FrameConfig {
			s.closeLocked()
			return voicehiveerr.Validation("asr stream: first frame must be config", nil)
		}
		stream, err := s.proxy.openVendorStream(s.ctx, frame.Config)
		if err != nil {
			s.state = sessionClosed
			s.cancel()
			return err
		}
		s.stream = stream
		s.state = sessionStreaming
		go s.pump()
		go s.watchCancellation()
		return nil
	}

	// sessionStreaming
	switch frame.Kind {
	case FrameAudio:
		if err := s.stream.SendAudio(frame.Audio); err != nil {
			s.closeLocked()
			return err
		}
		return nil
	case FrameEndOfStream:
		s.state = sessionDraining
		return s.stream.EndOfStream()
	default:
		return voicehiveerr.Validation("asr stream: config is only valid as the first frame", nil)
	}
}

// pump reads segments off the vendor stream one at a time, in order,
// and forwards them to out. Because a single goroutine does both the
// Recv call and the channel send, segment k's final is always enqueued
// before segment k+1's first partial; the pump never starts the next
// Recv until the previous result has been handed off.
func (s *Session) pump() {
	defer close(s.done)
	for {
		seg, err := s.stream.Recv()
		select {
		case s.out <- sessionResult{segment: seg, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// watchCancellation closes the underlying stream within one heartbeat
// tick of the session's context being cancelled, so a disconnected
// client's session does not keep a vendor channel open indefinitely.
func (s *Session) watchCancellation() {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			_ = s.stream.Close()
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

// Recv blocks for the next transcript segment, or returns the error the
// vendor stream terminated with.
func (s *Session) Recv(ctx context.Context) (domain.TranscriptSegment, error) {
	select {
	case r, ok := <-s.out:
		if !ok {
			return domain.TranscriptSegment{}, voicehiveerr.Internal("asr stream: closed with no result", nil)
		}
		return r.segment, r.err
	case <-ctx.Done():
		return domain.TranscriptSegment{}, voicehiveerr.Cancelled("asr stream: receive cancelled", ctx.Err())
	}
}

// Close terminates the session immediately: it stops the pump and
// cancellation watcher and closes the underlying vendor stream, if one
// was ever opened.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.state == sessionClosed {
		return nil
	}
	s.state = sessionClosed
	s.cancel()
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}
