package voiceprint

import (
	"fmt"
	"log"
)

// Embedder извлекает сырой вектор из аудио (реализуется ai.EngineManager)
type Embedder interface {
	Embed(samples []float32) ([]float32, error)
	Dim() int
}

// MinSamples минимальная длина аудио для извлечения отпечатка (1 секунда @ 16kHz)
const MinSamples = 16000

// Extractor извлекает голосовые отпечатки из аудио
type Extractor struct {
	embedder Embedder
}

// NewExtractor создаёт новый extractor
func NewExtractor(embedder Embedder) *Extractor {
	return &Extractor{embedder: embedder}
}

// Extract извлекает единичный голосовой отпечаток из моно 16kHz аудио
// Короткое аудио дополняется нулями справа до минимальной длины
func (e *Extractor) Extract(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples")
	}

	// Паддинг справа до минимальной длины
	if len(samples) < MinSamples {
		padded := make([]float32, MinSamples)
		copy(padded, samples)
		samples = padded
	}

	embedding, err := e.embedder.Embed(samples)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	normalized := Normalize(embedding)

	// Движок мог вернуть мусор (NaN/Inf) - отклоняем, не паникуем
	if err := Validate(normalized, 0); err != nil {
		return nil, fmt.Errorf("engine returned invalid embedding: %w", err)
	}

	return normalized, nil
}

// ExtractEncoded извлекает отпечаток и возвращает его в base64
func (e *Extractor) ExtractEncoded(samples []float32) (string, error) {
	embedding, err := e.Extract(samples)
	if err != nil {
		return "", err
	}
	return Encode(embedding), nil
}

// DecodeEnrolled разбирает map имя -> base64 отпечаток
// Невалидные записи пропускаются с логированием, не являются фатальными
func DecodeEnrolled(encoded map[string]string, expectedDim int) map[string][]float32 {
	enrolled := make(map[string][]float32, len(encoded))
	for name, b64 := range encoded {
		embedding, err := Decode(b64)
		if err != nil {
			log.Printf("[VoicePrint] Skipping enrolled voiceprint %q: %v", name, err)
			continue
		}
		if err := Validate(embedding, expectedDim); err != nil {
			log.Printf("[VoicePrint] Skipping enrolled voiceprint %q: %v", name, err)
			continue
		}
		enrolled[name] = embedding
	}
	return enrolled
}
