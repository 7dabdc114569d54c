package stt

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WavInfo describes a PCM WAV file's data layout.
type WavInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataOffset    int64
	DataLen       int64
}

// Duration returns the audio length in seconds.
func (w WavInfo) Duration() float64 {
	bytesPerSec := w.SampleRate * w.Channels * w.BitsPerSample / 8
	if bytesPerSec == 0 {
		return 0
	}
	return float64(w.DataLen) / float64(bytesPerSec)
}

// ReadWavInfo parses the RIFF header and locates the data chunk.
func ReadWavInfo(path string) (WavInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WavInfo{}, err
	}
	defer f.Close()

	var riff [12]byte
	if _, err := f.Read(riff[:]); err != nil {
		return WavInfo{}, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WavInfo{}, fmt.Errorf("not a RIFF/WAVE file")
	}

	info := WavInfo{}
	offset := int64(12)
	for {
		var hdr [8]byte
		if _, err := f.ReadAt(hdr[:], offset); err != nil {
			return WavInfo{}, fmt.Errorf("read chunk header at %d: %w", offset, err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			var fmtChunk [16]byte
			if _, err := f.ReadAt(fmtChunk[:], offset+8); err != nil {
				return WavInfo{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			info.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
		case "data":
			info.DataOffset = offset + 8
			info.DataLen = size
			if info.SampleRate == 0 {
				return WavInfo{}, fmt.Errorf("data chunk before fmt chunk")
			}
			return info, nil
		}

		// Chunks are word-aligned.
		offset += 8 + size
		if size%2 == 1 {
			offset++
		}
	}
}

// SliceWav extracts [start, start+length) seconds of audio as a standalone
// WAV byte buffer. The window is clamped to the file's end.
func SliceWav(path string, info WavInfo, start, length float64) ([]byte, error) {
	bytesPerSec := int64(info.SampleRate * info.Channels * info.BitsPerSample / 8)
	frame := int64(info.Channels * info.BitsPerSample / 8)

	from := int64(start * float64(bytesPerSec))
	from -= from % frame
	n := int64(length * float64(bytesPerSec))
	n -= n % frame
	if from >= info.DataLen {
		return nil, fmt.Errorf("slice start %.1fs beyond audio end", start)
	}
	if from+n > info.DataLen {
		n = info.DataLen - from
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data := make([]byte, n)
	if _, err := f.ReadAt(data, info.DataOffset+from); err != nil {
		return nil, fmt.Errorf("read slice: %w", err)
	}

	return buildWav(info, data), nil
}

// buildWav wraps raw PCM data in a minimal canonical WAV header.
func buildWav(info WavInfo, data []byte) []byte {
	byteRate := info.SampleRate * info.Channels * info.BitsPerSample / 8
	blockAlign := info.Channels * info.BitsPerSample / 8

	buf := make([]byte, 44+len(data))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(data)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(info.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(info.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(info.BitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(data)))
	copy(buf[44:], data)
	return buf
}
