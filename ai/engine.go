// Package ai предоставляет движки для speaker embeddings и диаризацию
package ai

import "context"

// EmbeddingEngine интерфейс для движков speaker embedding
// Позволяет использовать разные бэкенды (WeSpeaker ONNX, sherpa-onnx)
type EmbeddingEngine interface {
	// Embed извлекает вектор говорящего из аудио
	// samples - аудио данные в формате float32, 16kHz, mono
	// Возвращает сырой (ненормализованный) вектор фиксированной длины
	Embed(samples []float32) ([]float32, error)

	// Dim возвращает размерность вектора
	Dim() int

	// Close освобождает ресурсы движка
	Close()

	// Name возвращает имя движка (для логирования)
	Name() string
}

// Utterance реплика из диаризованной транскрипции
// Speaker - анонимная метка говорящего ("A", "B", ...)
type Utterance struct {
	Speaker string
	Text    string
	StartMs int64
	EndMs   int64
}

// DiarizingTranscriber интерфейс внешнего сервиса транскрипции с диаризацией
type DiarizingTranscriber interface {
	// Transcribe отправляет аудио файл и возвращает реплики,
	// упорядоченные по времени начала
	Transcribe(ctx context.Context, audioPath string) ([]Utterance, error)
}

// EmbeddingSampleRate частота дискретизации, которую ожидают все движки
const EmbeddingSampleRate = 16000
