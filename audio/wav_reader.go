package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WAVInfo параметры прочитанного WAV файла
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitsDepth  int
}

// ReadWAV читает PCM WAV файл и возвращает interleaved float32 сэмплы [-1, 1]
// Поддерживается PCM16 (формат нашего WAVWriter) и IEEE float32
func ReadWAV(filePath string) ([]float32, WAVInfo, error) {
	var info WAVInfo

	file, err := os.Open(filePath)
	if err != nil {
		return nil, info, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, info, fmt.Errorf("failed to stat WAV file: %w", err)
	}
	fileSize := stat.Size()

	// RIFF header
	var riff [12]byte
	if _, err := io.ReadFull(file, riff[:]); err != nil {
		return nil, info, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, info, fmt.Errorf("not a WAV file")
	}

	var audioFormat uint16
	var data []byte

	// Идём по chunk'ам: нужны fmt и data, остальные (LIST, fact) пропускаем
	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(file, chunkHdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, info, fmt.Errorf("failed to read chunk header: %w", err)
		}

		chunkID := string(chunkHdr[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHdr[4:8])

		// Заявленный размер chunk'а не может превышать размер файла
		if int64(chunkSize) > fileSize {
			return nil, info, fmt.Errorf("chunk %q declares %d bytes, file is %d", chunkID, chunkSize, fileSize)
		}

		switch chunkID {
		case "fmt ":
			// PCM fmt chunk занимает минимум 16 байт
			if chunkSize < 16 {
				return nil, info, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			fmtChunk := make([]byte, chunkSize)
			if _, err := io.ReadFull(file, fmtChunk); err != nil {
				return nil, info, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			audioFormat = binary.LittleEndian.Uint16(fmtChunk[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			info.BitsDepth = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))

		case "data":
			data = make([]byte, chunkSize)
			n, err := io.ReadFull(file, data)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return nil, info, fmt.Errorf("failed to read data chunk: %w", err)
			}
			data = data[:n]

		default:
			// Пропускаем неизвестный chunk (с выравниванием по чётному размеру)
			skip := int64(chunkSize)
			if chunkSize%2 != 0 {
				skip++
			}
			if _, err := file.Seek(skip, io.SeekCurrent); err != nil {
				return nil, info, fmt.Errorf("failed to skip chunk %q: %w", chunkID, err)
			}
		}

		if info.SampleRate != 0 && data != nil {
			break
		}
	}

	if info.SampleRate == 0 {
		return nil, info, fmt.Errorf("fmt chunk not found")
	}
	if data == nil {
		return nil, info, fmt.Errorf("data chunk not found")
	}
	if info.Channels < 1 {
		return nil, info, fmt.Errorf("invalid channel count: %d", info.Channels)
	}

	var samples []float32

	switch {
	case audioFormat == 1 && info.BitsDepth == 16:
		numSamples := len(data) / 2
		samples = make([]float32, numSamples)
		for i := 0; i < numSamples; i++ {
			s := int16(binary.LittleEndian.Uint16(data[i*2:]))
			samples[i] = float32(s) / 32768.0
		}

	case audioFormat == 3 && info.BitsDepth == 32:
		// IEEE float
		numSamples := len(data) / 4
		samples = make([]float32, numSamples)
		for i := 0; i < numSamples; i++ {
			bits := binary.LittleEndian.Uint32(data[i*4:])
			samples[i] = math.Float32frombits(bits)
		}

	default:
		return nil, info, fmt.Errorf("unsupported WAV format: format=%d bits=%d", audioFormat, info.BitsDepth)
	}

	return samples, info, nil
}

// ReadWAVMono читает WAV файл и возвращает моно сэмплы + sample rate
func ReadWAVMono(filePath string) ([]float32, int, error) {
	samples, info, err := ReadWAV(filePath)
	if err != nil {
		return nil, 0, err
	}
	return MixdownMono(samples, info.Channels), info.SampleRate, nil
}
