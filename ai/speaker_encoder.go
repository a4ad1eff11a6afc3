package ai

import (
	"fmt"
	"log"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// WeSpeakerConfig конфигурация для WeSpeaker энкодера
type WeSpeakerConfig struct {
	ModelPath  string
	SampleRate int
	NMels      int
	HopLength  int
	WinLength  int
	NFFT       int
}

// DefaultWeSpeakerConfig возвращает стандартную конфигурацию для WeSpeaker ResNet34
func DefaultWeSpeakerConfig(modelPath string) WeSpeakerConfig {
	return WeSpeakerConfig{
		ModelPath:  modelPath,
		SampleRate: EmbeddingSampleRate,
		NMels:      80,  // WeSpeaker использует 80 mels
		HopLength:  160, // 10ms
		WinLength:  400, // 25ms
		NFFT:       512,
	}
}

// WeSpeakerEngine преобразует аудио в вектор говорящего через ONNX Runtime
type WeSpeakerEngine struct {
	config       WeSpeakerConfig
	session      *ort.DynamicAdvancedSession
	melProcessor *MelProcessor
	dim          int
	mu           sync.Mutex
	initialized  bool
}

// NewWeSpeakerEngine создаёт новый энкодер
func NewWeSpeakerEngine(config WeSpeakerConfig) (*WeSpeakerEngine, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}

	engine := &WeSpeakerEngine{
		config: config,
	}

	engine.melProcessor = NewMelProcessor(MelConfig{
		SampleRate: config.SampleRate,
		NMels:      config.NMels,
		HopLength:  config.HopLength,
		WinLength:  config.WinLength,
		NFFT:       config.NFFT,
	})

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	if err := engine.loadModel(); err != nil {
		return nil, err
	}

	return engine, nil
}

func (e *WeSpeakerEngine) loadModel() error {
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(e.config.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to get model info: %w", err)
	}

	inputNames := make([]string, len(inputInfo))
	for i, info := range inputInfo {
		inputNames[i] = info.Name
	}
	outputNames := make([]string, len(outputInfo))
	for i, info := range outputInfo {
		outputNames[i] = info.Name
	}

	log.Printf("[WeSpeaker] inputs: %v, outputs: %v", inputNames, outputNames)

	// Размерность вектора - последняя размерность выходного тензора
	if len(outputInfo) > 0 {
		dims := outputInfo[0].Dimensions
		if len(dims) > 0 && dims[len(dims)-1] > 0 {
			e.dim = int(dims[len(dims)-1])
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		e.config.ModelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}

	e.session = session
	e.initialized = true
	log.Printf("[WeSpeaker] model loaded: %s (dim=%d)", e.config.ModelPath, e.dim)
	return nil
}

// Name возвращает имя движка
func (e *WeSpeakerEngine) Name() string {
	return "wespeaker"
}

// Dim возвращает размерность вектора
func (e *WeSpeakerEngine) Dim() int {
	return e.dim
}

// Embed извлекает вектор говорящего из аудио
func (e *WeSpeakerEngine) Embed(samples []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, fmt.Errorf("engine not initialized")
	}

	if len(samples) < e.config.SampleRate/10 {
		return nil, fmt.Errorf("audio too short: %d samples", len(samples))
	}

	// 1. Вычисляем Mel-спектрограмму
	melSpec, numFrames := e.melProcessor.Compute(samples)

	// 2. Подготавливаем входной тензор [1, numFrames, nMels]
	// WeSpeaker ONNX export принимает [B, T, D], D=80
	flatInput := make([]float32, numFrames*e.config.NMels)
	for t := 0; t < numFrames; t++ {
		copy(flatInput[t*e.config.NMels:], melSpec[t])
	}

	inputShape := ort.NewShape(1, int64(numFrames), int64(e.config.NMels))
	inputTensor, err := ort.NewTensor(inputShape, flatInput)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// 3. Запускаем инференс
	outputs := []ort.Value{nil}
	err = e.session.Run([]ort.Value{inputTensor}, outputs)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	// 4. Получаем результат
	outputTensor := outputs[0].(*ort.Tensor[float32])
	embedding := outputTensor.GetData()

	if e.dim == 0 {
		e.dim = len(embedding)
	}

	// Копируем, так как outputTensor будет уничтожен
	result := make([]float32, len(embedding))
	copy(result, embedding)

	return result, nil
}

// Close освобождает ресурсы
func (e *WeSpeakerEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.initialized = false
}
