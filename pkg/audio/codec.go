package audio

import (
	"encoding/base64"
	"encoding/binary"
)

// Wire format shared by capture and playback: 16-bit signed little-endian PCM,
// mono, 24 kHz.
const (
	SampleRate     = 24000
	Channels       = 1
	BytesPerSample = 2
)

// pcm16Scale maps a normalised sample to the int16 range. Both directions use
// 32767 so that ±1.0 round-trips to ±32767 exactly.
const pcm16Scale = 32767

// EncodePCM16 converts normalised samples to 16-bit little-endian PCM.
// Samples outside [-1, 1] are clamped before scaling; the scaled value is
// truncated toward zero. NaN encodes as silence.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s != s {
			s = 0
		} else if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * pcm16Scale)
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(v))
	}
	return out
}

// DecodePCM16 converts 16-bit little-endian PCM to normalised samples.
// A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/BytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		out[i] = float32(v) / pcm16Scale
	}
	return out
}

// EncodedChunk is one captured window ready for the wire. It is immutable once
// built; callers must not modify PCM.
type EncodedChunk struct {
	// PCM holds the raw 16-bit little-endian samples.
	PCM []byte

	// Base64 is the standard-encoding form of PCM sent in
	// input_audio_buffer.append.
	Base64 string
}

// NewEncodedChunk encodes samples and precomputes their base64 form.
func NewEncodedChunk(samples []float32) EncodedChunk {
	pcm := EncodePCM16(samples)
	return EncodedChunk{
		PCM:    pcm,
		Base64: base64.StdEncoding.EncodeToString(pcm),
	}
}

// Len returns the number of samples in the chunk.
func (c EncodedChunk) Len() int { return len(c.PCM) / BytesPerSample }

// Duration returns the playback length of pcm in seconds at [SampleRate].
func Duration(pcm []byte) float64 {
	return float64(len(pcm)/BytesPerSample) / float64(SampleRate*Channels)
}
