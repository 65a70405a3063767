package asr

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

type fakeStream struct {
	mu        sync.Mutex
	segments  []domain.TranscriptSegment
	idx       int
	sent      [][]byte
	eosCalled bool
	closed    bool
}

func (f *fakeStream) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chunk)
	return nil
}

func (f *fakeStream) Recv() (domain.TranscriptSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.segments) {
		return domain.TranscriptSegment{}, io.EOF
	}
	seg := f.segments[f.idx]
	f.idx++
	return seg, nil
}

func (f *fakeStream) EndOfStream() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eosCalled = true
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStream) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type streamRecognizer struct {
	stream    *fakeStream
	openErr   error
	openCalls int
}

func (r *streamRecognizer) TranscribeUnary(context.Context, []byte, domain.StreamConfig) (domain.TranscriptSegment, error) {
	return domain.TranscriptSegment{}, errors.New("not used")
}

func (r *streamRecognizer) OpenStream(ctx context.Context, cfg domain.StreamConfig) (Stream, error) {
	r.openCalls++
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.stream, nil
}

func newSessionTestProxy(rec *streamRecognizer) *Proxy {
	fabric := resilience.NewFabric(nil, nil)
	ConfigureBreakers(fabric)
	return NewProxy(nil, fabric, func(*resilience.GRPCPool) Recognizer { return rec })
}

var validConfig = domain.StreamConfig{LanguageCode: "en-US", SampleRateHz: 16000}

func TestSession_AudioBeforeConfigClosesWithValidation(t *testing.T) {
	rec := &streamRecognizer{stream: &fakeStream{}}
	p := newSessionTestProxy(rec)
	sess := p.NewSession(context.Background())

	err := sess.HandleFrame(Frame{Kind: FrameAudio, Audio: []byte("too early")})
	require.Error(t, err)
	assert.Equal(t, voicehiveerr.KindValidation, voicehiveerr.KindOf(err))
	assert.Equal(t, 0, rec.openCalls)

	// The session closed on the protocol violation; even a well-formed
	// Config frame afterward is rejected.
	err = sess.HandleFrame(Frame{Kind: FrameConfig, Config: validConfig})
	require.Error(t, err)
}

func TestSession_EndOfStreamBeforeConfigClosesWithValidation(t *testing.T) {
	rec := &streamRecognizer{stream: &fakeStream{}}
	p := newSessionTestProxy(rec)
	sess := p.NewSession(context.Background())

	err := sess.HandleFrame(Frame{Kind: FrameEndOfStream})
	require.Error(t, err)
	assert.Equal(t, voicehiveerr.KindValidation, voicehiveerr.KindOf(err))
}

func TestSession_ConfigFirstThenAudioStreamsInOrder(t *testing.T) {
	stream := &fakeStream{segments: []domain.TranscriptSegment{
		{Kind: domain.SegmentPartial, Text: "hal"},
		{Kind: domain.SegmentFinal, Text: "hallo"},
	}}
	rec := &streamRecognizer{stream: stream}
	p := newSessionTestProxy(rec)
	sess := p.NewSession(context.Background())

	require.NoError(t, sess.HandleFrame(Frame{Kind: FrameConfig, Config: validConfig}))
	assert.Equal(t, 1, rec.openCalls)

	require.NoError(t, sess.HandleFrame(Frame{Kind: FrameAudio, Audio: []byte("chunk")}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := sess.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentPartial, first.Kind)

	second, err := sess.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentFinal, second.Kind)
	assert.Equal(t, "hallo", second.Text)
}

func TestSession_EndOfStreamDrainsThenRejectsAudio(t *testing.T) {
	stream := &fakeStream{}
	rec := &streamRecognizer{stream: stream}
	p := newSessionTestProxy(rec)
	sess := p.NewSession(context.Background())

	require.NoError(t, sess.HandleFrame(Frame{Kind: FrameConfig, Config: validConfig}))
	require.NoError(t, sess.HandleFrame(Frame{Kind: FrameEndOfStream}))
	assert.True(t, stream.eosCalled)

	err := sess.HandleFrame(Frame{Kind: FrameAudio, Audio: []byte("late")})
	require.Error(t, err)
	assert.Equal(t, voicehiveerr.KindValidation, voicehiveerr.KindOf(err))
}

func TestSession_ConfigOnlyValidAsFirstFrame(t *testing.T) {
	stream := &fakeStream{}
	rec := &streamRecognizer{stream: stream}
	p := newSessionTestProxy(rec)
	sess := p.NewSession(context.Background())

	require.NoError(t, sess.HandleFrame(Frame{Kind: FrameConfig, Config: validConfig}))
	err := sess.HandleFrame(Frame{Kind: FrameConfig, Config: validConfig})
	require.Error(t, err)
	assert.Equal(t, 1, rec.openCalls)
}

func TestSession_CloseStopsVendorStream(t *testing.T) {
	stream := &fakeStream{}
	rec := &streamRecognizer{stream: stream}
	p := newSessionTestProxy(rec)
	sess := p.NewSession(context.Background())

	require.NoError(t, sess.HandleFrame(Frame{Kind: FrameConfig, Config: validConfig}))
	require.NoError(t, sess.Close())

	assert.True(t, stream.wasClosed())
}

func TestSession_CancellationClosesVendorStreamWithinOneHeartbeat(t *testing.T) {
	stream := &fakeStream{}
	rec := &streamRecognizer{stream: stream}
	p := newSessionTestProxy(rec)

	ctx, cancel := context.WithCancel(context.Background())
	sess := p.NewSession(ctx)
	require.NoError(t, sess.HandleFrame(Frame{Kind: FrameConfig, Config: validConfig}))

	cancel()

	deadline := time.After(heartbeat)
	for !stream.wasClosed() {
		select {
		case <-deadline:
			t.Fatal("vendor stream was not closed within one heartbeat tick of cancellation")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
