package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"meetscribe/ai"
	"meetscribe/audio"
	"meetscribe/voiceprint"
)

// MaxFileSize максимальный размер загружаемого файла (500 MB)
const MaxFileSize = 500 * 1024 * 1024

// DefaultTimeout лимит времени на один запуск pipeline
const DefaultTimeout = 600 * time.Second

// Config конфигурация pipeline
type Config struct {
	DataDir string
	Timeout time.Duration // 0 = DefaultTimeout
	MaxJobs int           // Максимум одновременных запусков, 0 = 2
}

// Event событие жизненного цикла job (для websocket/gRPC подписчиков)
type Event struct {
	Type   string    `json:"type"` // job_received, job_state, job_completed, job_failed
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// EventFunc подписчик на события jobs
type EventFunc func(Event)

// TranscriptEntry реплика итогового транскрипта с разрешённым именем
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// UnresolvedSpeaker нераспознанный спикер с preview snippet
type UnresolvedSpeaker struct {
	Label        string `json:"speaker_label"`
	AudioSnippet string `json:"audio_snippet"` // data:audio/mp3;base64,...
}

// Result итог обработки записи
type Result struct {
	Transcript         []TranscriptEntry   `json:"transcript"`
	SpeakerMap         map[string]string   `json:"speaker_map"`
	UnresolvedSpeakers []UnresolvedSpeaker `json:"unresolved_speakers"`
}

// EmbeddingProvider то, что pipeline требует от движка
// (реализуется ai.EngineManager)
type EmbeddingProvider interface {
	Embed(samples []float32) ([]float32, error)
	Dim() int
	IsLoaded() bool
}

// Pipeline оркестрирует обработку: диаризация, сборка клипов,
// извлечение отпечатков, сопоставление
type Pipeline struct {
	engines  EmbeddingProvider
	diarizer ai.DiarizingTranscriber
	cfg      Config

	sem        chan struct{}
	activeJobs int64
	onEvent    EventFunc
}

// NewPipeline создаёт pipeline
func NewPipeline(engines EmbeddingProvider, diarizer ai.DiarizingTranscriber, cfg Config) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 2
	}

	return &Pipeline{
		engines:  engines,
		diarizer: diarizer,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxJobs),
	}
}

// SetEventCallback устанавливает подписчика на события jobs
func (p *Pipeline) SetEventCallback(cb EventFunc) {
	p.onEvent = cb
}

// ActiveJobs возвращает число выполняющихся запусков
func (p *Pipeline) ActiveJobs() int {
	return int(atomic.LoadInt64(&p.activeJobs))
}

func (p *Pipeline) emit(event Event) {
	if p.onEvent != nil {
		p.onEvent(event)
	}
}

// ValidateAudioFile проверяет загруженный файл: расширение, размер
func ValidateAudioFile(path string) error {
	if !audio.IsSupportedExt(path) {
		return fmt.Errorf("%w: unsupported audio format", ErrInvalidInput)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: cannot stat file: %v", ErrInvalidInput, err)
	}
	if stat.Size() == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if stat.Size() > MaxFileSize {
		return fmt.Errorf("%w: file too large (%d bytes, max %d)", ErrInvalidInput, stat.Size(), MaxFileSize)
	}

	return nil
}

// Process обрабатывает запись целиком: all-or-nothing, без частичных результатов
// (кроме деградации отдельных спикеров до placeholder при сбое извлечения)
//
// audioPath - загруженный файл (.wav/.mp3)
// enrolled - имя -> base64 отпечаток
func (p *Pipeline) Process(ctx context.Context, audioPath string, enrolled map[string]string) (*Result, error) {
	if err := ValidateAudioFile(audioPath); err != nil {
		return nil, err
	}
	if !p.engines.IsLoaded() {
		return nil, fmt.Errorf("%w: no embedding engine loaded", ErrEngineUnavailable)
	}
	if p.diarizer == nil {
		return nil, fmt.Errorf("%w: diarization service is not configured", ErrEngineUnavailable)
	}

	// Ограничиваем число одновременных запусков
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	defer func() { <-p.sem }()

	atomic.AddInt64(&p.activeJobs, 1)
	defer atomic.AddInt64(&p.activeJobs, -1)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	job, err := NewJob(p.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	// Scratch директория удаляется на всех путях выхода
	defer job.Cleanup()

	p.emit(Event{Type: "job_received", JobID: job.ID, Status: StatusReceived})
	log.Printf("[Pipeline] Job %s: processing %s", job.ID[:8], audioPath)

	result, err := p.run(ctx, job, audioPath, enrolled)
	if err != nil {
		job.SetStatus(StatusFailed)
		p.emit(Event{Type: "job_failed", JobID: job.ID, Status: StatusFailed, Detail: err.Error()})
		log.Printf("[Pipeline] Job %s failed: %v", job.ID[:8], err)
		return nil, err
	}

	job.SetStatus(StatusComplete)
	p.emit(Event{Type: "job_completed", JobID: job.ID, Status: StatusComplete})
	log.Printf("[Pipeline] Job %s complete: %d utterances, %d speakers",
		job.ID[:8], len(result.Transcript), len(result.SpeakerMap))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, job *Job, audioPath string, enrolled map[string]string) (*Result, error) {
	// 1. Диаризация через внешний сервис
	p.setStatus(job, StatusTranscribing)
	utterances, err := p.diarizer.Transcribe(ctx, audioPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrDiarization, err)
	}
	if len(utterances) == 0 {
		return nil, fmt.Errorf("%w: no speech detected", ErrDiarization)
	}

	// 2. Сборка клипов по спикерам
	p.setStatus(job, StatusAssembling)
	samples, sampleRate, err := audio.LoadMono(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	clips, err := AssembleClips(samples, sampleRate, utterances, job.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble clips: %w", err)
	}

	// 3. Извлечение отпечатков - строго последовательно, движок
	// держит общее состояние устройства
	p.setStatus(job, StatusExtracting)
	extractor := voiceprint.NewExtractor(p.engines)
	anonymous := make(map[string][]float32, len(clips))

	for label, clip := range clips {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		default:
		}

		vp, err := extractor.Extract(clip.EmbeddingSamples())
		if err != nil {
			// Сбой одного спикера не фатален: он получит placeholder
			log.Printf("[Pipeline] Job %s: voiceprint extraction failed for speaker %s: %v",
				job.ID[:8], label, err)
			anonymous[label] = nil
			continue
		}
		anonymous[label] = vp
	}

	// 4. Сопоставление с зарегистрированными голосами
	p.setStatus(job, StatusMatching)
	enrolledVPs := voiceprint.DecodeEnrolled(enrolled, p.engines.Dim())
	identities, _ := voiceprint.MatchSpeakers(enrolledVPs, anonymous)

	// 5. Итоговый результат
	result := &Result{
		Transcript:         make([]TranscriptEntry, 0, len(utterances)),
		SpeakerMap:         identities,
		UnresolvedSpeakers: make([]UnresolvedSpeaker, 0),
	}

	for _, u := range utterances {
		result.Transcript = append(result.Transcript, TranscriptEntry{
			Speaker: identities[u.Speaker],
			Text:    u.Text,
			StartMs: u.StartMs,
			EndMs:   u.EndMs,
		})
	}

	// Нераспознанные спикеры получают preview snippet, в порядке меток
	for _, label := range sortedLabels(clips) {
		identity := identities[label]
		if !voiceprint.IsUnknownPlaceholder(identity) {
			continue
		}
		snippet, err := clips[label].Snippet()
		if err != nil {
			log.Printf("[Pipeline] Job %s: snippet failed for speaker %s: %v", job.ID[:8], label, err)
			snippet = ""
		}
		result.UnresolvedSpeakers = append(result.UnresolvedSpeakers, UnresolvedSpeaker{
			Label:        label,
			AudioSnippet: snippet,
		})
	}

	return result, nil
}

func (p *Pipeline) setStatus(job *Job, status JobStatus) {
	job.SetStatus(status)
	p.emit(Event{Type: "job_state", JobID: job.ID, Status: status})
}

func sortedLabels(clips map[string]*SpeakerClip) []string {
	labels := make([]string, 0, len(clips))
	for label := range clips {
		labels = append(labels, label)
	}
	// Простая сортировка, меток мало
	for i := 0; i < len(labels)-1; i++ {
		for j := i + 1; j < len(labels); j++ {
			if labels[j] < labels[i] {
				labels[i], labels[j] = labels[j], labels[i]
			}
		}
	}
	return labels
}

// IsTimeout проверяет, является ли ошибка таймаутом
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
