package acquisition

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Encoding is the wire format of the raw device bytes.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm16le"
	EncodingULaw  Encoding = "ulaw"
	EncodingALaw  Encoding = "alaw"
)

const (
	ulawBias = 0x84
	ulawClip = 32635

	pcmScale = 32768.0
)

// ParseEncoding maps a config value to an Encoding; empty means PCM16.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingPCM16, "pcm16":
		return EncodingPCM16, nil
	case EncodingULaw, "pcmu":
		return EncodingULaw, nil
	case EncodingALaw, "pcma":
		return EncodingALaw, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", s)
	}
}

func (e Encoding) BytesPerSample() int {
	if e == EncodingULaw || e == EncodingALaw {
		return 1
	}
	return 2
}

// Decode converts whole samples from src into dst as floats in [-1, 1) and
// returns the number of samples written.
func (e Encoding) Decode(dst []float32, src []byte) int {
	switch e {
	case EncodingULaw:
		n := min(len(dst), len(src))
		for i := range n {
			dst[i] = float32(uLawToLinear(src[i])) / pcmScale
		}
		return n
	case EncodingALaw:
		n := min(len(dst), len(src))
		for i := range n {
			dst[i] = float32(aLawToLinear(src[i])) / pcmScale
		}
		return n
	default:
		n := min(len(dst), len(src)/2)
		for i := range n {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(src[2*i:]))) / pcmScale
		}
		return n
	}
}

// Encode serializes linear samples in this encoding.
func (e Encoding) Encode(pcm []int16) []byte {
	switch e {
	case EncodingULaw:
		return encodeULaw(pcm)
	case EncodingALaw:
		return encodeALaw(pcm)
	default:
		out := make([]byte, 2*len(pcm))
		for i, s := range pcm {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
		}
		return out
	}
}

// FloatToPCM16 converts a decoded sample back to a 16-bit value, clipping
// out of range input.
func FloatToPCM16(f float32) int16 {
	v := int(f * pcmScale)
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}

func encodeULaw(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, sample := range pcm {
		out[i] = linearToULaw(sample)
	}
	return out
}

func encodeALaw(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, sample := range pcm {
		out[i] = linearToALaw(sample)
	}
	return out
}

func linearToULaw(sample int16) byte {
	s := int(sample)
	sign := 0
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := 7
	for expMask := 0x4000; exponent > 0 && (s&expMask) == 0; exponent-- {
		expMask >>= 1
	}
	mantissa := (s >> (exponent + 3)) & 0x0F

	return ^byte(sign | (exponent << 4) | mantissa)
}

func uLawToLinear(sample byte) int16 {
	sample = ^sample
	sign := sample & 0x80
	exponent := (sample >> 4) & 0x07
	mantissa := sample & 0x0F

	value := ((int(mantissa) << 3) + ulawBias) << exponent
	value -= ulawBias
	if sign != 0 {
		value = -value
	}
	if value > 32767 {
		value = 32767
	}
	if value < -32768 {
		value = -32768
	}
	return int16(value)
}

// segment end values for 13-bit A-law magnitudes
var aLawSegEnd = [8]int{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}

func linearToALaw(sample int16) byte {
	v := int(sample) >> 3
	mask := 0xD5
	if v < 0 {
		mask = 0x55
		v = -v - 1
	}

	seg := 0
	for seg < len(aLawSegEnd) && v > aLawSegEnd[seg] {
		seg++
	}
	if seg >= len(aLawSegEnd) {
		return byte(0x7F ^ mask)
	}

	aval := seg << 4
	if seg < 2 {
		aval |= (v >> 1) & 0x0F
	} else {
		aval |= (v >> seg) & 0x0F
	}
	return byte(aval ^ mask)
}

func aLawToLinear(sample byte) int16 {
	sample ^= 0x55

	sign := sample & 0x80
	exponent := (sample >> 4) & 0x07
	mantissa := sample & 0x0F

	value := int(mantissa) << 4
	if exponent == 0 {
		value += 8
	} else {
		value += 0x108
		value <<= exponent - 1
	}

	if sign == 0 {
		value = -value
	}
	if value > 32767 {
		value = 32767
	}
	if value < -32768 {
		value = -32768
	}
	return int16(value)
}
