package ai

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX Runtime глобальная инициализация
var (
	onnxInitialized bool
	onnxInitMu      sync.Mutex
)

func initONNXRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	// Проверяем переменную окружения для пути к библиотеке
	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")

	// Если не задана переменная окружения, ищем в стандартных местах
	if libPath == "" {
		searchPaths := []string{
			// Рядом с исполняемым файлом
			"./libonnxruntime.so",
			"./libonnxruntime.dylib",
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.dylib",
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				libPath = path
				break
			}
		}
	}

	if libPath != "" {
		log.Printf("[ONNX] Using ONNX Runtime library: %s", libPath)
		ort.SetSharedLibraryPath(libPath)
	} else {
		log.Println("[ONNX] ONNX Runtime library not found, onnx engines will not be available")
		return fmt.Errorf("ONNX Runtime library not found")
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}

	onnxInitialized = true
	log.Println("[ONNX] ONNX Runtime initialized successfully")
	return nil
}

// DetectBestProvider определяет лучший provider для текущей платформы
func DetectBestProvider() string {
	// На macOS с Apple Silicon предпочитаем CoreML
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "coreml"
	}
	// На Linux/Windows с NVIDIA GPU можно использовать cuda,
	// но для безопасности по умолчанию используем cpu
	return "cpu"
}
