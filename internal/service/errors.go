// Package service реализует pipeline идентификации спикеров:
// диаризация -> сборка клипов -> извлечение отпечатков -> сопоставление
package service

import "errors"

// Типизированные ошибки pipeline. API слой отображает их в HTTP статусы
var (
	// ErrInvalidInput - невалидный запрос (формат файла, размер, JSON)
	ErrInvalidInput = errors.New("invalid input")

	// ErrDiarization - внешний сервис транскрипции вернул ошибку
	// или не нашёл речь в записи
	ErrDiarization = errors.New("diarization failed")

	// ErrTimeout - обработка не уложилась в лимит времени
	ErrTimeout = errors.New("processing timeout")

	// ErrEngineUnavailable - embedding движок не загружен
	// или внешний сервис недоступен
	ErrEngineUnavailable = errors.New("engine unavailable")
)
