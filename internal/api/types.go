package api

import (
	"time"

	"meetscribe/models"
)

// Message структура сообщения для WebSocket и gRPC Control канала
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// Jobs
	JobID  string `json:"jobId,omitempty"`
	Status string `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`

	// Models
	Models   []models.ModelState `json:"models,omitempty"`
	ModelID  string              `json:"modelId,omitempty"`
	Progress float64             `json:"progress,omitempty"`
	Provider string              `json:"provider,omitempty"` // cpu, coreml, cuda, auto
	Error    string              `json:"error,omitempty"`
}

// ErrorResponse тело ответа при ошибке: машинно-проверяемый статус,
// человекочитаемый detail, без stack traces
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// VoiceprintResponse ответ /generate-voiceprint
type VoiceprintResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Dim        int    `json:"dim"`
	Voiceprint string `json:"voiceprint"` // base64 little-endian float32
}

// VoiceprintInfo метаданные сохранённого отпечатка (без самого вектора)
type VoiceprintInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Dim        int       `json:"dim"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	SeenCount  int       `json:"seenCount"`
	Source     string    `json:"source,omitempty"`
}

// HealthResponse ответ /health
type HealthResponse struct {
	Status       string `json:"status"`
	EngineLoaded bool   `json:"engine_loaded"`
	Device       string `json:"device"`
	Dim          int    `json:"dim,omitempty"`
	Model        string `json:"model,omitempty"`
	ActiveJobs   int    `json:"active_jobs"`
}
