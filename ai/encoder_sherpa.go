package ai

import (
	"fmt"
	"log"
	"os"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// SherpaEncoderConfig конфигурация для sherpa движка
type SherpaEncoderConfig struct {
	ModelPath  string
	NumThreads int
	Provider   string // cpu, cuda, coreml, auto
}

// DefaultSherpaEncoderConfig возвращает конфигурацию по умолчанию
func DefaultSherpaEncoderConfig(modelPath string) SherpaEncoderConfig {
	return SherpaEncoderConfig{
		ModelPath:  modelPath,
		NumThreads: 4,
		Provider:   "auto",
	}
}

// SherpaEngine реализует EmbeddingEngine через sherpa-onnx
type SherpaEngine struct {
	config      SherpaEncoderConfig
	extractor   *sherpa.SpeakerEmbeddingExtractor
	provider    string
	mu          sync.Mutex
	initialized bool
}

// NewSherpaEngine создаёт новый движок на базе sherpa-onnx
func NewSherpaEngine(config SherpaEncoderConfig) (*SherpaEngine, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("embedding model not found: %s", config.ModelPath)
	}

	// Определяем provider (auto = автоопределение)
	provider := config.Provider
	if provider == "auto" || provider == "" {
		provider = DetectBestProvider()
	}
	log.Printf("[Sherpa] using provider=%s (requested=%s)", provider, config.Provider)

	sherpaConfig := sherpa.SpeakerEmbeddingExtractorConfig{
		Model:      config.ModelPath,
		NumThreads: config.NumThreads,
		Debug:      0,
		Provider:   provider,
	}

	extractor := sherpa.NewSpeakerEmbeddingExtractor(&sherpaConfig)
	if extractor == nil {
		// Если CoreML не сработал, пробуем CPU
		if provider != "cpu" {
			log.Printf("[Sherpa] %s provider failed, falling back to CPU", provider)
			sherpaConfig.Provider = "cpu"
			extractor = sherpa.NewSpeakerEmbeddingExtractor(&sherpaConfig)
			if extractor == nil {
				return nil, fmt.Errorf("failed to create sherpa-onnx extractor (tried %s and cpu)", provider)
			}
			provider = "cpu"
		} else {
			return nil, fmt.Errorf("failed to create sherpa-onnx extractor")
		}
	}

	log.Printf("[Sherpa] extractor initialized: provider=%s, model=%s, dim=%d",
		provider, config.ModelPath, extractor.Dim())

	return &SherpaEngine{
		config:      config,
		extractor:   extractor,
		provider:    provider,
		initialized: true,
	}, nil
}

// Name возвращает имя движка
func (e *SherpaEngine) Name() string {
	return "sherpa"
}

// Dim возвращает размерность вектора
func (e *SherpaEngine) Dim() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return 0
	}
	return e.extractor.Dim()
}

// Provider возвращает фактически используемый provider
func (e *SherpaEngine) Provider() string {
	return e.provider
}

// Embed извлекает вектор говорящего из аудио
func (e *SherpaEngine) Embed(samples []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, fmt.Errorf("engine not initialized")
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples")
	}

	stream := e.extractor.CreateStream()
	if stream == nil {
		return nil, fmt.Errorf("failed to create sherpa stream")
	}
	defer sherpa.DeleteOnlineStream(stream)

	stream.AcceptWaveform(EmbeddingSampleRate, samples)
	stream.InputFinished()

	if !e.extractor.IsReady(stream) {
		return nil, fmt.Errorf("audio too short for embedding extraction")
	}

	embedding := e.extractor.Compute(stream)
	if len(embedding) == 0 {
		return nil, fmt.Errorf("extractor returned empty embedding")
	}

	return embedding, nil
}

// Close освобождает ресурсы
func (e *SherpaEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.extractor != nil {
		sherpa.DeleteSpeakerEmbeddingExtractor(e.extractor)
		e.extractor = nil
	}
	e.initialized = false
}
