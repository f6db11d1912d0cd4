package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func companderTolerance(v int) float64 {
	if v < 0 {
		v = -v
	}
	return max(float64(v)*0.05, 16)
}

func TestULawRoundTrip(t *testing.T) {
	for v := -32768; v <= 32767; v += 97 {
		got := uLawToLinear(linearToULaw(int16(v)))
		assert.InDelta(t, v, int(got), companderTolerance(v), "sample %d", v)
	}
}

func TestALawRoundTrip(t *testing.T) {
	for v := -32768; v <= 32767; v += 97 {
		got := aLawToLinear(linearToALaw(int16(v)))
		assert.InDelta(t, v, int(got), companderTolerance(v), "sample %d", v)
	}
}

func TestALawKnownValues(t *testing.T) {
	assert.Equal(t, byte(0xD5), linearToALaw(0))
	assert.Equal(t, byte(0xFA), linearToALaw(1000))
	assert.Equal(t, byte(0x7A), linearToALaw(-1000))
	assert.Equal(t, int16(1008), aLawToLinear(0xFA))
	assert.Equal(t, int16(-1008), aLawToLinear(0x7A))
}

func TestPCM16DecodeIsExact(t *testing.T) {
	pcm := []int16{0, 1, -1, 16384, -16384, 32767, -32768}
	raw := EncodingPCM16.Encode(pcm)
	require.Len(t, raw, 2*len(pcm))

	out := make([]float32, len(pcm))
	n := EncodingPCM16.Decode(out, raw)
	require.Equal(t, len(pcm), n)
	for i, v := range pcm {
		assert.Equal(t, float32(v)/32768, out[i])
		assert.Equal(t, v, FloatToPCM16(out[i]))
	}
}

func TestDecodeIgnoresTrailingHalfSample(t *testing.T) {
	out := make([]float32, 4)
	n := EncodingPCM16.Decode(out, []byte{0x00, 0x40, 0x01})
	assert.Equal(t, 1, n)
	assert.Equal(t, float32(0.5), out[0])
}

func TestCompandedDecodeProducesOneSamplePerByte(t *testing.T) {
	for _, enc := range []Encoding{EncodingULaw, EncodingALaw} {
		raw := enc.Encode([]int16{0, 8000, -8000})
		require.Len(t, raw, 3)
		out := make([]float32, 3)
		require.Equal(t, 3, enc.Decode(out, raw))
		assert.InDelta(t, 0, out[0], 0.001, string(enc))
		assert.InDelta(t, 8000.0/32768, out[1], 0.01, string(enc))
		assert.InDelta(t, -8000.0/32768, out[2], 0.01, string(enc))
	}
}

func TestFloatToPCM16Clips(t *testing.T) {
	assert.Equal(t, int16(32767), FloatToPCM16(1.5))
	assert.Equal(t, int16(-32768), FloatToPCM16(-2))
}

func TestParseEncoding(t *testing.T) {
	cases := map[string]Encoding{
		"":        EncodingPCM16,
		"PCM16LE": EncodingPCM16,
		"pcmu":    EncodingULaw,
		" ulaw ":  EncodingULaw,
		"PCMA":    EncodingALaw,
	}
	for in, want := range cases {
		got, err := ParseEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEncoding("opus")
	assert.Error(t, err)
}
