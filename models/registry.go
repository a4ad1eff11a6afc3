// Package models предоставляет управление моделями speaker embedding
package models

// ModelType тип файла модели
type ModelType string

const (
	ModelTypeONNX ModelType = "onnx"
)

// EngineType тип движка, который исполняет модель
type EngineType string

const (
	EngineTypeWeSpeaker EngineType = "wespeaker" // ONNX Runtime (onnxruntime_go)
	EngineTypeSherpa    EngineType = "sherpa"    // sherpa-onnx extractor
)

// ModelInfo информация о модели
type ModelInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        ModelType  `json:"type"`
	Engine      EngineType `json:"engine"`
	Size        string     `json:"size"`
	SizeBytes   int64      `json:"sizeBytes"`
	Description string     `json:"description"`
	Dim         int        `json:"dim"` // Размерность вектора
	Speed       string     `json:"speed"`
	Recommended bool       `json:"recommended,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
}

// ModelStatus статус модели на устройстве
type ModelStatus string

const (
	ModelStatusNotDownloaded ModelStatus = "not_downloaded"
	ModelStatusDownloading   ModelStatus = "downloading"
	ModelStatusDownloaded    ModelStatus = "downloaded"
	ModelStatusActive        ModelStatus = "active"
	ModelStatusError         ModelStatus = "error"
)

// ModelState состояние модели с информацией
type ModelState struct {
	ModelInfo
	Status   ModelStatus `json:"status"`
	Progress float64     `json:"progress,omitempty"` // 0-100
	Error    string      `json:"error,omitempty"`
	Path     string      `json:"path,omitempty"` // Путь к скачанной модели
}

// Registry реестр доступных моделей
var Registry = []ModelInfo{
	{
		ID:          "wespeaker-voxceleb-resnet34",
		Name:        "WeSpeaker ResNet34",
		Type:        ModelTypeONNX,
		Engine:      EngineTypeWeSpeaker,
		Size:        "26 MB",
		SizeBytes:   26_851_029,
		Description: "Speaker embedding (WeSpeaker ResNet34, VoxCeleb)",
		Dim:         256,
		Speed:       "~40x",
		Recommended: true,
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/speaker-recongition-models/wespeaker_en_voxceleb_resnet34.onnx",
	},
	{
		ID:          "3dspeaker-speech-eres2net",
		Name:        "3D-Speaker ERes2Net",
		Type:        ModelTypeONNX,
		Engine:      EngineTypeSherpa,
		Size:        "25 MB",
		SizeBytes:   25_000_000,
		Description: "Speaker embedding (3D-Speaker ERes2Net, Alibaba)",
		Dim:         192,
		Speed:       "~50x",
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/speaker-recongition-models/3dspeaker_speech_eres2net_base_sv_zh-cn_3dspeaker_16k.onnx",
	},
	{
		ID:          "3dspeaker-speech-campplus",
		Name:        "3D-Speaker CAM++",
		Type:        ModelTypeONNX,
		Engine:      EngineTypeSherpa,
		Size:        "28 MB",
		SizeBytes:   28_000_000,
		Description: "Speaker embedding (3D-Speaker CAM++, быстрая)",
		Dim:         192,
		Speed:       "~80x",
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/speaker-recongition-models/3dspeaker_speech_campplus_sv_zh-cn_16k-common.onnx",
	},
}

// GetModelByID возвращает модель по ID
func GetModelByID(id string) *ModelInfo {
	for _, m := range Registry {
		if m.ID == id {
			return &m
		}
	}
	return nil
}

// GetModelsByEngine возвращает модели для определённого движка
func GetModelsByEngine(engine EngineType) []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if m.Engine == engine {
			result = append(result, m)
		}
	}
	return result
}

// GetRecommendedModels возвращает рекомендуемые модели
func GetRecommendedModels() []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if m.Recommended {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModelID модель по умолчанию
const DefaultModelID = "wespeaker-voxceleb-resnet34"
