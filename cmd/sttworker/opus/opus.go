package opus

/*
#cgo linux LDFLAGS: -l:libopus.a -lm
#cgo darwin LDFLAGS: -lopus
#include <opus.h>
*/
import "C"

import (
	"encoding/binary"
	"fmt"
)

// Decoder wraps a libopus decoder, producing s16le PCM samples — the
// wire format SampleBuffer.Process expects on audio.Frame.Data. Only
// decoding is needed: the pipeline ingests tracks, it never encodes.
type Decoder struct {
	dec      *C.OpusDecoder
	rate     int
	channels int
}

// NewDecoder creates a decoder for the given sample rate and channel
// count (rate must be one of opus's supported rates: 8000, 12000,
// 16000, 24000, 48000).
func NewDecoder(rate, channels int) (*Decoder, error) {
	var d Decoder
	var errCode C.int

	d.dec = C.opus_decoder_create(C.int(rate), C.int(channels), &errCode)
	d.rate = rate
	d.channels = channels

	if errCode != 0 {
		return nil, fmt.Errorf("failed to create opus decoder: %d", errCode)
	}

	return &d, nil
}

// Decode decodes one Opus packet into interleaved s16le PCM bytes.
// maxSamplesPerChannel bounds the output buffer and should be at least
// the channel's frame size (e.g. 960 for 20ms at 48kHz).
func (d *Decoder) Decode(data []byte, maxSamplesPerChannel int) ([]byte, error) {
	if d.dec == nil {
		return nil, fmt.Errorf("decoder is not initialized")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data should not be empty")
	}
	if maxSamplesPerChannel <= 0 {
		return nil, fmt.Errorf("maxSamplesPerChannel must be positive")
	}

	samples := make([]int16, maxSamplesPerChannel*d.channels)

	ret := int(C.opus_decode(d.dec, (*C.uchar)(&data[0]), C.int(len(data)),
		(*C.opus_int16)(&samples[0]), C.int(maxSamplesPerChannel), 0))
	if ret < 0 {
		return nil, fmt.Errorf("decode failed with code %d", ret)
	}

	n := ret * d.channels
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(samples[i]))
	}
	return out, nil
}

// Destroy releases the decoder's native resources.
func (d *Decoder) Destroy() error {
	if d.dec == nil {
		return fmt.Errorf("decoder is not initialized")
	}
	C.opus_decoder_destroy(d.dec)
	d.dec = nil
	return nil
}
