package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir   string
	ModelsDir string
	Port      string
	GRPCAddr  string

	ModelID  string // ID модели speaker embedding из реестра
	Provider string // auto, cpu, coreml, cuda

	Timeout time.Duration // Лимит на один запуск pipeline
	MaxJobs int           // Максимум одновременных запусков

	AssemblyAIKey string // Из ASSEMBLYAI_API_KEY
}

func Load() *Config {
	dataDir := flag.String("data", "data", "Directory for application data")
	modelsDir := flag.String("models", "", "Directory for downloaded models (default: dataDir/models)")
	port := flag.String("port", "8080", "Server port")
	grpcAddr := flag.String("grpc", "", "gRPC control address (unix:/path or npipe:name, empty = platform default)")
	modelID := flag.String("model", "wespeaker-voxceleb-resnet34", "Speaker embedding model ID")
	provider := flag.String("provider", "auto", "Compute provider: auto, cpu, coreml, cuda")
	timeout := flag.Duration("timeout", 600*time.Second, "Per-request processing timeout")
	maxJobs := flag.Int("max-jobs", 2, "Max concurrent processing jobs")
	flag.Parse()

	// Determine models directory
	finalModelsDir := *modelsDir
	if finalModelsDir == "" {
		finalModelsDir = filepath.Join(*dataDir, "models")
	}

	return &Config{
		DataDir:       *dataDir,
		ModelsDir:     finalModelsDir,
		Port:          *port,
		GRPCAddr:      *grpcAddr,
		ModelID:       *modelID,
		Provider:      *provider,
		Timeout:       *timeout,
		MaxJobs:       *maxJobs,
		AssemblyAIKey: os.Getenv("ASSEMBLYAI_API_KEY"),
	}
}
