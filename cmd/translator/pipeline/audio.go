package pipeline

import (
	"bytes"
	"fmt"
)

type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
	FormatM4A Format = "m4a"
	FormatOGG Format = "ogg"
)

func (f Format) IsValid() bool {
	switch f {
	case FormatWAV, FormatMP3, FormatM4A, FormatOGG:
		return true
	default:
		return false
	}
}

// MimeType returns the container's MIME type, used when shipping the blob to
// remote backends.
func (f Format) MimeType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatM4A:
		return "audio/mp4"
	case FormatOGG:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// AudioBlob is an immutable audio clip. It's produced once by the caller and
// consumed read-only by backends.
type AudioBlob struct {
	Data   []byte
	Format Format
}

func (b AudioBlob) IsEmpty() bool {
	return len(b.Data) == 0
}

// DetectFormat sniffs the container format from the first bytes of data.
func DetectFormat(data []byte) (Format, error) {
	if len(data) < 12 {
		return "", fmt.Errorf("data too short to sniff container format")
	}

	switch {
	case bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.Equal(data[0:4], []byte("OggS")):
		return FormatOGG, nil
	case bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatM4A, nil
	case bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3, nil
	case data[0] == 0xff && data[1]&0xe0 == 0xe0:
		// MP3 frame sync without an ID3 tag.
		return FormatMP3, nil
	default:
		return "", fmt.Errorf("unrecognized container format")
	}
}
