// Package stt wraps the external speech-to-text collaborator (C5):
// the canonical WAV encoder, and the HTTP and Azure backends.
package stt

import "encoding/binary"

const wavHeaderLen = 44

// EncodeWAV wraps s16le interleaved samples in the canonical 44-byte
// WAV header of spec.md §6.6 (RIFF/WAVE, fmt chunk with PCM code 1,
// bitsPerSample 16, little-endian).
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	wav := make([]byte, wavHeaderLen+dataLen)

	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:], 16)
	binary.LittleEndian.PutUint16(wav[20:], 1)
	binary.LittleEndian.PutUint16(wav[22:], uint16(channels))
	binary.LittleEndian.PutUint32(wav[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:], 16)
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:], uint32(dataLen))

	pcm := wav[wavHeaderLen:]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}

	return wav
}
