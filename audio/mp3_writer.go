package audio

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// MP3Writer стриминговый писатель MP3 через shine-mp3 (чистый Go, без FFmpeg)
type MP3Writer struct {
	file       *os.File
	encoder    *mp3.Encoder
	filePath   string
	sampleRate int
	channels   int

	// Буфер для накопления сэмплов (shine кодирует фиксированными блоками)
	buffer []int16

	samplesWritten int64
	mu             sync.Mutex
	closed         bool
}

// NewMP3Writer создаёт новый MP3 writer
func NewMP3Writer(filePath string, sampleRate, channels int) (*MP3Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	encoder := mp3.NewEncoder(sampleRate, channels)

	return &MP3Writer{
		file:       file,
		encoder:    encoder,
		filePath:   filePath,
		sampleRate: sampleRate,
		channels:   channels,
		buffer:     make([]int16, 0, 8192),
	}, nil
}

// Write записывает float32 семплы
func (w *MP3Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	// Конвертируем float32 в int16
	for _, s := range samples {
		// Clamp
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		w.buffer = append(w.buffer, int16(s*32767))
	}

	w.samplesWritten += int64(len(samples))

	// Shine кодирует блоками по 1152 сэмплов на канал для MP3 Layer III
	// Пишем когда накопилось достаточно данных (4608 сэмплов = 4 блока)
	minBufferSize := 1152 * w.channels * 4
	if len(w.buffer) >= minBufferSize {
		w.encoder.Write(w.file, w.buffer)
		w.buffer = w.buffer[:0] // Очищаем буфер, сохраняя capacity
	}

	return nil
}

// SamplesWritten возвращает количество записанных семплов
func (w *MP3Writer) SamplesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samplesWritten
}

// Close завершает запись
func (w *MP3Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	// Записываем оставшиеся данные из буфера
	if len(w.buffer) > 0 {
		// Дополняем до размера блока нулями
		blockSize := 1152 * w.channels
		for len(w.buffer)%blockSize != 0 {
			w.buffer = append(w.buffer, 0)
		}
		w.encoder.Write(w.file, w.buffer)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}

// FilePath возвращает путь к файлу
func (w *MP3Writer) FilePath() string {
	return w.filePath
}

// EncodeMP3 кодирует моно float32 семплы в MP3 в памяти
// Используется для audio snippets в HTTP ответах
func EncodeMP3(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to encode")
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		pcm[i] = int16(s * 32767)
	}

	// Выравниваем по размеру блока (1152 сэмплов для mono)
	for len(pcm)%1152 != 0 {
		pcm = append(pcm, 0)
	}

	var buf bytes.Buffer
	encoder := mp3.NewEncoder(sampleRate, 1)
	if err := encoder.Write(&buf, pcm); err != nil {
		return nil, fmt.Errorf("MP3 encode failed: %w", err)
	}

	return buf.Bytes(), nil
}
