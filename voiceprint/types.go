// Package voiceprint предоставляет голосовые отпечатки: извлечение,
// кодирование и сопоставление спикеров с зарегистрированными голосами
package voiceprint

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// VoicePrint представляет сохранённый голосовой отпечаток
type VoicePrint struct {
	ID         string    `json:"id"`         // UUID
	Name       string    `json:"name"`       // Имя спикера (например, "Иван")
	Embedding  []float32 `json:"embedding"`  // Единичный вектор (размерность зависит от движка)
	CreatedAt  time.Time `json:"createdAt"`  // Время создания
	UpdatedAt  time.Time `json:"updatedAt"`  // Время последнего обновления
	LastSeenAt time.Time `json:"lastSeenAt"` // Время последнего распознавания
	SeenCount  int       `json:"seenCount"`  // Количество встреч (для усреднения)

	// Метаданные
	Source string `json:"source,omitempty"` // Откуда был записан ("enroll", "api")
	Notes  string `json:"notes,omitempty"`  // Заметки пользователя
}

// VoicePrintStore структура для хранения в JSON файле
type VoicePrintStore struct {
	Version     int          `json:"version"`     // Версия формата (для миграций)
	VoicePrints []VoicePrint `json:"voiceprints"` // Список голосовых отпечатков
}

// Пороги для matching (косинусное сходство)
const (
	ThresholdHigh   float32 = 0.85 // Высокая уверенность
	ThresholdMedium float32 = 0.70 // Средняя уверенность
	ThresholdMin    float32 = 0.50 // Минимальный порог для принятия совпадения
)

// GetConfidence возвращает уровень уверенности для similarity
func GetConfidence(similarity float32) string {
	switch {
	case similarity >= ThresholdHigh:
		return "high"
	case similarity >= ThresholdMedium:
		return "medium"
	case similarity > ThresholdMin:
		return "low"
	default:
		return "none"
	}
}

// CurrentVersion текущая версия формата хранения
const CurrentVersion = 1

// Encode кодирует вектор в base64 (little-endian float32, подряд)
func Encode(embedding []float32) string {
	buf := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Decode декодирует base64 обратно в вектор
// Ошибка если base64 невалиден или длина не кратна 4 байтам
func Decode(encoded string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty voiceprint")
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid voiceprint length: %d bytes", len(buf))
	}

	embedding := make([]float32, len(buf)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding, nil
}

// Validate проверяет вектор: не пустой, без NaN/Inf, правильная размерность
// expectedDim = 0 отключает проверку размерности
func Validate(embedding []float32, expectedDim int) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty voiceprint")
	}
	if expectedDim > 0 && len(embedding) != expectedDim {
		return fmt.Errorf("dimension mismatch: got %d, expected %d", len(embedding), expectedDim)
	}
	for i, f := range embedding {
		f64 := float64(f)
		if math.IsNaN(f64) || math.IsInf(f64, 0) {
			return fmt.Errorf("invalid value at index %d", i)
		}
	}
	return nil
}

// Normalize нормализует вектор до единичной длины
// Нулевой вектор возвращается как есть
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}

	if sumSq < 1e-10 {
		return v
	}

	norm := float32(1.0 / math.Sqrt(sumSq))
	result := make([]float32, len(v))
	for i, x := range v {
		result[i] = x * norm
	}

	return result
}
