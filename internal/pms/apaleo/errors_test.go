package apaleo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   voicehiveerr.Kind
	}{
		{400, voicehiveerr.KindValidation},
		{401, voicehiveerr.KindAuth},
		{403, voicehiveerr.KindAuth},
		{404, voicehiveerr.KindNotFound},
		{409, voicehiveerr.KindConflict},
		{422, voicehiveerr.KindValidation},
		{429, voicehiveerr.KindRateLimited},
		{500, voicehiveerr.KindTransient},
		{503, voicehiveerr.KindTransient},
	}
	for _, tc := range tests {
		err := mapStatus(tc.status, []byte(`{"messages":["nope"]}`))
		assert.Equal(t, tc.kind, voicehiveerr.KindOf(err), "status %d", tc.status)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter([]byte(`{"retryAfter":30}`)))
	assert.Equal(t, 5*time.Second, parseRetryAfter([]byte(`{"messages":[]}`)))
	assert.Equal(t, 5*time.Second, parseRetryAfter([]byte(`not json`)))
	assert.Equal(t, 5*time.Second, parseRetryAfter([]byte(`{"retryAfter":-2}`)))
}
