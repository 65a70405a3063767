package asr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
)

type fakeRecognizer struct {
	transcribeErr error
}

func (f *fakeRecognizer) TranscribeUnary(ctx context.Context, audio []byte, cfg domain.StreamConfig) (domain.TranscriptSegment, error) {
	if f.transcribeErr != nil {
		return domain.TranscriptSegment{}, f.transcribeErr
	}
	return domain.TranscriptSegment{Kind: domain.SegmentFinal, Text: "hallo"}, nil
}

func (f *fakeRecognizer) OpenStream(ctx context.Context, cfg domain.StreamConfig) (Stream, error) {
	return nil, errors.New("not implemented")
}

type fakeClassifier struct {
	alts []domain.LanguageAlternative
	err  error
}

func (f *fakeClassifier) Classify(ctx context.Context, sample []byte) ([]domain.LanguageAlternative, error) {
	return f.alts, f.err
}

func newTestProxy(rec *fakeRecognizer) *Proxy {
	fabric := resilience.NewFabric(nil, nil)
	return NewProxy(nil, fabric, func(*resilience.GRPCPool) Recognizer { return rec })
}

func TestDetectLanguage_HighConfidenceNoAlternatives(t *testing.T) {
	p := newTestProxy(&fakeRecognizer{}).WithClassifier(&fakeClassifier{
		alts: []domain.LanguageAlternative{{LanguageCode: "de", Confidence: 0.99}},
	})

	result := p.DetectLanguage(context.Background(), make([]byte, 100))
	assert.Equal(t, "de-DE", result.LanguageCode)
	assert.False(t, result.Fallback)
	assert.Empty(t, result.Alternatives)
}

func TestDetectLanguage_LowConfidenceSurfacesAlternatives(t *testing.T) {
	p := newTestProxy(&fakeRecognizer{}).WithClassifier(&fakeClassifier{
		alts: []domain.LanguageAlternative{
			{LanguageCode: "en", Confidence: 0.6},
			{LanguageCode: "de", Confidence: 0.3},
			{LanguageCode: "fr", Confidence: 0.1},
		},
	})

	result := p.DetectLanguage(context.Background(), make([]byte, 100))
	assert.Equal(t, "en-US", result.LanguageCode)
	assert.Len(t, result.Alternatives, 2)
}

func TestDetectLanguage_TranscriptionFailureFallsBackNeverErrors(t *testing.T) {
	p := newTestProxy(&fakeRecognizer{transcribeErr: errors.New("upstream down")})

	result := p.DetectLanguage(context.Background(), make([]byte, 100))
	assert.Equal(t, fallbackLanguage, result.LanguageCode)
	assert.Equal(t, fallbackConfidence, result.Confidence)
	assert.True(t, result.Fallback)
}

func TestDetectLanguage_ClassifierFailureFallsBack(t *testing.T) {
	p := newTestProxy(&fakeRecognizer{}).WithClassifier(&fakeClassifier{err: errors.New("classifier down")})

	result := p.DetectLanguage(context.Background(), make([]byte, 100))
	assert.True(t, result.Fallback)
}
