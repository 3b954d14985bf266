// Package wav implements the minimal WAV handling the pipeline needs: PCM16
// decode for local inference and the speech gate, and encode for wrapping
// synthesized samples.
package wav

import (
	"encoding/binary"
	"fmt"
)

const headerLen = 44

// Decode parses 16-bit PCM WAV data, returning mono float32 samples in
// [-1, 1] and the sample rate. Stereo input is downmixed by averaging the
// channels.
func Decode(data []byte) ([]float32, int, error) {
	if len(data) < 12 {
		return nil, 0, fmt.Errorf("data too short to be a valid WAV file")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("missing RIFF/WAVE header")
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		pcm        []byte
		haveFmt    bool
	)

	// Walk the chunks. Browsers and encoders commonly insert LIST or fact
	// chunks between fmt and data.
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short")
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV format code %d, only PCM is supported", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word aligned.
		off = body + size + size%2
	}

	if !haveFmt {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, 0, fmt.Errorf("missing data chunk")
	}
	if bitDepth != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d, only 16-bit PCM is supported", bitDepth)
	}
	if channels != 1 && channels != 2 {
		return nil, 0, fmt.Errorf("unsupported channel count %d", channels)
	}

	frameSize := 2 * channels
	numFrames := len(pcm) / frameSize
	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		var acc float32
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(pcm[i*frameSize+ch*2:]))
			acc += float32(s) / 32768.0
		}
		samples[i] = acc / float32(channels)
	}

	return samples, sampleRate, nil
}

// Encode wraps float32 samples in a WAV container (16-bit PCM, mono).
func Encode(samples []float32, sampleRate int) []byte {
	wav := make([]byte, headerLen+len(samples)*2)
	pcm := wav[headerLen:]

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:], 16)
	binary.LittleEndian.PutUint16(wav[20:], 1)
	binary.LittleEndian.PutUint16(wav[22:], 1)
	binary.LittleEndian.PutUint32(wav[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(wav[32:], 2)
	binary.LittleEndian.PutUint16(wav[34:], 16)
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:], uint32(len(samples)*2))

	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*32767.0)))
	}

	return wav
}
