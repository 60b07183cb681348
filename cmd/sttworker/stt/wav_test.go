package stt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeaderFields(t *testing.T) {
	samples := []int16{1, -2, 3, -4}
	wav := EncodeWAV(samples, 16000, 1)

	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, "fmt ", string(wav[12:16]))
	require.Equal(t, uint32(16), binary.LittleEndian.Uint32(wav[16:20]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	require.Equal(t, uint32(16000*1*2), binary.LittleEndian.Uint32(wav[28:32]))
	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]))
	require.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	require.Equal(t, "data", string(wav[36:40]))
	require.Equal(t, uint32(len(samples)*2), binary.LittleEndian.Uint32(wav[40:44]))
	require.Len(t, wav, 44+len(samples)*2)
}

func TestEncodeWAVStereo(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	wav := EncodeWAV(samples, 48000, 2)

	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[22:24]))
	require.Equal(t, uint32(48000*2*2), binary.LittleEndian.Uint32(wav[28:32]))
	require.Equal(t, uint16(4), binary.LittleEndian.Uint16(wav[32:34]))
}
