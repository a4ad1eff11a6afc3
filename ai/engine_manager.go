package ai

import (
	"fmt"
	"log"
	"sync"

	"meetscribe/models"
)

// EngineManager управляет активным embedding движком
// Позволяет переключаться между WeSpeaker ONNX и sherpa-onnx бэкендами
type EngineManager struct {
	modelsManager *models.Manager
	activeEngine  EmbeddingEngine
	activeModelID string
	provider      string
	mu            sync.RWMutex

	// Embed вызовы сериализуются: движок держит общее состояние устройства,
	// стабильность важнее пропускной способности
	embedMu sync.Mutex
}

// NewEngineManager создаёт новый менеджер движков
func NewEngineManager(modelsManager *models.Manager) *EngineManager {
	return &EngineManager{
		modelsManager: modelsManager,
	}
}

// GetActiveEngine возвращает активный движок
func (em *EngineManager) GetActiveEngine() EmbeddingEngine {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.activeEngine
}

// GetActiveModelID возвращает ID активной модели
func (em *EngineManager) GetActiveModelID() string {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.activeModelID
}

// Provider возвращает фактически используемый provider (устройство)
func (em *EngineManager) Provider() string {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.provider
}

// SetActiveModel устанавливает активную модель и создаёт соответствующий движок
// provider: auto, cpu, coreml, cuda
func (em *EngineManager) SetActiveModel(modelID, provider string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	// Если уже активна эта модель - ничего не делаем
	if em.activeModelID == modelID && em.activeEngine != nil {
		return nil
	}

	modelInfo := models.GetModelByID(modelID)
	if modelInfo == nil {
		return fmt.Errorf("unknown model: %s", modelID)
	}

	if !em.modelsManager.IsModelDownloaded(modelID) {
		return fmt.Errorf("model %s is not downloaded", modelID)
	}

	if provider == "auto" || provider == "" {
		provider = DetectBestProvider()
	}

	// Создаём новый движок в зависимости от типа
	var newEngine EmbeddingEngine
	var err error

	switch modelInfo.Engine {
	case models.EngineTypeWeSpeaker:
		modelPath := em.modelsManager.GetModelPath(modelID)
		newEngine, err = NewWeSpeakerEngine(DefaultWeSpeakerConfig(modelPath))
		if err != nil {
			return fmt.Errorf("failed to create WeSpeaker engine: %w", err)
		}
		// onnxruntime_go сессия создаётся на CPU
		provider = "cpu"

	case models.EngineTypeSherpa:
		modelPath := em.modelsManager.GetModelPath(modelID)
		cfg := DefaultSherpaEncoderConfig(modelPath)
		cfg.Provider = provider
		sherpaEngine, serr := NewSherpaEngine(cfg)
		if serr != nil {
			return fmt.Errorf("failed to create sherpa engine: %w", serr)
		}
		provider = sherpaEngine.Provider()
		newEngine = sherpaEngine

	default:
		return fmt.Errorf("unsupported engine type: %s", modelInfo.Engine)
	}

	// Закрываем старый движок
	if em.activeEngine != nil {
		em.activeEngine.Close()
	}

	em.activeEngine = newEngine
	em.activeModelID = modelID
	em.provider = provider

	// Обновляем активную модель в models.Manager
	if err := em.modelsManager.SetActiveModel(modelID); err != nil {
		log.Printf("[EngineManager] Warning: failed to set active model in models manager: %v", err)
	}

	log.Printf("[EngineManager] switched to model %s (engine: %s, provider: %s)",
		modelID, modelInfo.Engine, provider)
	return nil
}

// Embed извлекает вектор через активный движок
// Вызовы сериализуются между собой
func (em *EngineManager) Embed(samples []float32) ([]float32, error) {
	em.mu.RLock()
	engine := em.activeEngine
	em.mu.RUnlock()

	if engine == nil {
		return nil, fmt.Errorf("no active engine")
	}

	em.embedMu.Lock()
	defer em.embedMu.Unlock()
	return engine.Embed(samples)
}

// Dim возвращает размерность вектора активного движка (0 если движок не загружен)
func (em *EngineManager) Dim() int {
	em.mu.RLock()
	engine := em.activeEngine
	em.mu.RUnlock()

	if engine == nil {
		return 0
	}
	return engine.Dim()
}

// IsLoaded проверяет, загружен ли движок
func (em *EngineManager) IsLoaded() bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.activeEngine != nil
}

// Close закрывает активный движок
func (em *EngineManager) Close() {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.activeEngine != nil {
		em.activeEngine.Close()
		em.activeEngine = nil
	}
	em.activeModelID = ""
	em.provider = ""
}

// GetEngineInfo возвращает информацию об активном движке
func (em *EngineManager) GetEngineInfo() map[string]interface{} {
	em.mu.RLock()
	defer em.mu.RUnlock()

	info := map[string]interface{}{
		"activeModelID": em.activeModelID,
		"hasEngine":     em.activeEngine != nil,
	}

	if em.activeEngine != nil {
		info["engineName"] = em.activeEngine.Name()
		info["dim"] = em.activeEngine.Dim()
		info["provider"] = em.provider
	}

	return info
}
