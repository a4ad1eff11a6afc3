package audio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LoadMono декодирует поддерживаемый аудио файл (.wav, .mp3) в моно float32
// Возвращает сэмплы с исходной частотой дискретизации
func LoadMono(filePath string) ([]float32, int, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".wav":
		return ReadWAVMono(filePath)
	case ".mp3":
		return ReadMP3Mono(filePath)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format: %s", filepath.Ext(filePath))
	}
}

// LoadMonoResampled декодирует файл и приводит к целевой частоте
func LoadMonoResampled(filePath string, targetRate int) ([]float32, error) {
	samples, rate, err := LoadMono(filePath)
	if err != nil {
		return nil, err
	}
	if rate != targetRate {
		samples = ResampleLinear(samples, rate, targetRate)
	}
	return samples, nil
}

// IsSupportedExt проверяет расширение файла
func IsSupportedExt(filePath string) bool {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".wav", ".mp3":
		return true
	}
	return false
}
