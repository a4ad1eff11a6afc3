package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus статус обработки
type JobStatus string

const (
	StatusReceived     JobStatus = "received"
	StatusTranscribing JobStatus = "transcribing"
	StatusAssembling   JobStatus = "assembling"
	StatusExtracting   JobStatus = "extracting"
	StatusMatching     JobStatus = "matching"
	StatusComplete     JobStatus = "complete"
	StatusFailed       JobStatus = "failed"
)

// Job один запуск pipeline с изолированной scratch директорией
type Job struct {
	ID         string
	ScratchDir string
	CreatedAt  time.Time

	status JobStatus
	mu     sync.Mutex
}

// NewJob создаёт job со scratch директорией под dataDir/jobs/<uuid>
func NewJob(dataDir string) (*Job, error) {
	id := uuid.New().String()
	scratchDir := filepath.Join(dataDir, "jobs", id)

	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	return &Job{
		ID:         id,
		ScratchDir: scratchDir,
		CreatedAt:  time.Now(),
		status:     StatusReceived,
	}, nil
}

// Status возвращает текущий статус
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// SetStatus переводит job в новый статус
// Из терминального статуса (complete/failed) переходы запрещены
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusComplete || j.status == StatusFailed {
		return
	}
	j.status = status
}

// Cleanup удаляет scratch директорию
// Вызывается на всех путях выхода, включая таймаут
func (j *Job) Cleanup() {
	if err := os.RemoveAll(j.ScratchDir); err != nil {
		log.Printf("[Job] Failed to remove scratch dir %s: %v", j.ScratchDir, err)
	}
}
