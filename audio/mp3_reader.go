package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Reader читает MP3 файлы используя чистый Go (без FFmpeg)
type MP3Reader struct {
	decoder    *mp3.Decoder
	file       *os.File
	sampleRate int
	channels   int
	length     int64 // длина в байтах (signed 16-bit PCM)
}

// NewMP3Reader открывает MP3 файл для чтения
func NewMP3Reader(filePath string) (*MP3Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// go-mp3 возвращает длину в байтах (signed 16-bit stereo = 4 bytes per sample)
	return &MP3Reader{
		decoder:    decoder,
		file:       file,
		sampleRate: decoder.SampleRate(),
		channels:   2, // go-mp3 всегда декодирует в стерео
		length:     decoder.Length(),
	}, nil
}

// SampleRate возвращает частоту дискретизации
func (r *MP3Reader) SampleRate() int {
	return r.sampleRate
}

// Channels возвращает количество каналов
func (r *MP3Reader) Channels() int {
	return r.channels
}

// Duration возвращает длительность в секундах
func (r *MP3Reader) Duration() float64 {
	// length в байтах, 4 байта на сэмпл (16-bit stereo)
	samples := r.length / 4
	return float64(samples) / float64(r.sampleRate)
}

// ReadAllStereo читает весь файл и возвращает отдельные каналы (left, right)
// Возвращает float32 сэмплы с исходной частотой дискретизации
func (r *MP3Reader) ReadAllStereo() ([]float32, []float32, error) {
	// Читаем весь PCM (signed 16-bit stereo, interleaved)
	pcmData := make([]byte, r.length)
	n, err := io.ReadFull(r.decoder, pcmData)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, fmt.Errorf("failed to read PCM data: %w", err)
	}
	pcmData = pcmData[:n]

	// Количество сэмплов на канал
	numSamples := n / 4 // 2 bytes per sample * 2 channels

	left := make([]float32, numSamples)
	right := make([]float32, numSamples)

	for i := 0; i < numSamples; i++ {
		// Читаем signed 16-bit little-endian
		leftSample := int16(binary.LittleEndian.Uint16(pcmData[i*4:]))
		rightSample := int16(binary.LittleEndian.Uint16(pcmData[i*4+2:]))

		// Конвертируем в float32 [-1.0, 1.0]
		left[i] = float32(leftSample) / 32768.0
		right[i] = float32(rightSample) / 32768.0
	}

	return left, right, nil
}

// ReadAllMono читает весь файл и возвращает моно (среднее каналов)
func (r *MP3Reader) ReadAllMono() ([]float32, error) {
	left, right, err := r.ReadAllStereo()
	if err != nil {
		return nil, err
	}

	mono := make([]float32, len(left))
	for i := 0; i < len(left); i++ {
		mono[i] = (left[i] + right[i]) / 2.0
	}

	return mono, nil
}

// Close закрывает файл
func (r *MP3Reader) Close() error {
	return r.file.Close()
}

// ReadMP3Mono декодирует весь MP3 файл в моно float32
func ReadMP3Mono(filePath string) ([]float32, int, error) {
	reader, err := NewMP3Reader(filePath)
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	mono, err := reader.ReadAllMono()
	if err != nil {
		return nil, 0, err
	}
	return mono, reader.SampleRate(), nil
}
