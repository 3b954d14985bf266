package wav

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeErrors(t *testing.T) {
	tcs := []struct {
		name string
		data []byte
		err  string
	}{
		{
			name: "too short",
			data: []byte("RIFF"),
			err:  "data too short to be a valid WAV file",
		},
		{
			name: "not a wav",
			data: make([]byte, 64),
			err:  "missing RIFF/WAVE header",
		},
		{
			name: "no data chunk",
			data: func() []byte {
				b := Encode([]float32{0}, 16000)
				copy(b[36:40], "none")
				return b
			}(),
			err: "missing data chunk",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode(tc.data)
			require.EqualError(t, err, tc.err)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -1, 1}
	data := Encode(samples, 16000)

	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:]))

	decoded, rate, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, 16000, rate)
	require.Len(t, decoded, len(samples))
	for i := range samples {
		require.InDelta(t, samples[i], decoded[i], 0.001)
	}
}

func TestDecodeStereoDownmix(t *testing.T) {
	// Hand-build a 2-channel file: left at 0.5, right at -0.5 should mix
	// to silence.
	const frames = 8
	data := make([]byte, 44+frames*4)
	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-8))
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	binary.LittleEndian.PutUint32(data[16:], 16)
	binary.LittleEndian.PutUint16(data[20:], 1)
	binary.LittleEndian.PutUint16(data[22:], 2)
	binary.LittleEndian.PutUint32(data[24:], 44100)
	binary.LittleEndian.PutUint32(data[28:], 44100*4)
	binary.LittleEndian.PutUint16(data[32:], 4)
	binary.LittleEndian.PutUint16(data[34:], 16)
	copy(data[36:40], "data")
	binary.LittleEndian.PutUint32(data[40:], frames*4)
	left, right := int16(16384), int16(-16384)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(data[44+i*4:], uint16(left))
		binary.LittleEndian.PutUint16(data[44+i*4+2:], uint16(right))
	}

	samples, rate, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, 44100, rate)
	require.Len(t, samples, frames)
	for _, s := range samples {
		require.InDelta(t, 0, s, 0.001)
	}
}
