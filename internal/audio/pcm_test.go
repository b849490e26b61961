package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/agent/internal/types"
)

func pcmConst(v int16, n int) []byte {
	b := make([]byte, n*2)
	for i := 0; i < n; i++ {
		b[i*2] = byte(v)
		b[i*2+1] = byte(uint16(v) >> 8)
	}
	return b
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 1000, RMS(pcmConst(1000, 160)), 0.001)
	assert.InDelta(t, 1000, RMS(pcmConst(-1000, 160)), 0.001)
}

func TestFloatRoundTripClips(t *testing.T) {
	b := FromFloat([]float64{0.5, 2.0, -2.0})
	s := ToFloat(b)
	assert.InDelta(t, 0.5, s[0], 0.001)
	assert.InDelta(t, float64(math.MaxInt16)/32768.0, s[1], 0.001)
	assert.Equal(t, -1.0, s[2])
}

func TestSplit(t *testing.T) {
	chunks := Split(make([]byte, 1000), FrameBytes(16000, 20))
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 640)
	assert.Len(t, chunks[1], 360)
	assert.Nil(t, Split(nil, 10))
}

func TestResamplerPassthrough(t *testing.T) {
	rs, err := NewResampler(16000, 16000)
	require.NoError(t, err)
	in := types.AudioFrame{PCM: pcmConst(5, 10), SampleRate: 16000}
	out, err := rs.Process(in)
	require.NoError(t, err)
	assert.Equal(t, in.PCM, out.PCM)
}

func TestResamplerRejectsWrongRate(t *testing.T) {
	rs, err := NewResampler(48000, 16000)
	require.NoError(t, err)
	_, err = rs.Process(types.AudioFrame{PCM: pcmConst(1, 480), SampleRate: 8000})
	assert.Error(t, err)
}
