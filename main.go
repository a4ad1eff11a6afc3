package main

import (
	"log"

	"meetscribe/ai"
	"meetscribe/internal/api"
	"meetscribe/internal/config"
	"meetscribe/internal/service"
	"meetscribe/models"
	"meetscribe/voiceprint"
)

func main() {
	log.Println("MeetScribe backend starting...")

	cfg := config.Load()
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Models directory: %s", cfg.ModelsDir)

	// Initialize Model Manager
	modelMgr, err := models.NewManager(cfg.ModelsDir)
	if err != nil {
		log.Fatalf("Failed to init model manager: %v", err)
	}

	// Initialize Embedding Engine
	engineMgr := ai.NewEngineManager(modelMgr)
	defer engineMgr.Close()

	if modelMgr.IsModelDownloaded(cfg.ModelID) {
		log.Printf("Loading speaker embedding model %s (provider=%s)...", cfg.ModelID, cfg.Provider)
		if err := engineMgr.SetActiveModel(cfg.ModelID, cfg.Provider); err != nil {
			// Без движка сервер работает в degraded режиме: модель можно
			// скачать и активировать через control канал
			log.Printf("Warning: failed to load embedding model: %v", err)
		} else {
			log.Printf("Embedding engine ready: dim=%d provider=%s", engineMgr.Dim(), engineMgr.Provider())
		}
	} else {
		log.Printf("Model %s is not downloaded yet, starting degraded", cfg.ModelID)
	}

	// Initialize Diarization
	var diarizer ai.DiarizingTranscriber
	if cfg.AssemblyAIKey != "" {
		diarizer, err = ai.NewAssemblyAIDiarizer(cfg.AssemblyAIKey)
		if err != nil {
			log.Fatalf("Failed to init diarizer: %v", err)
		}
	} else {
		log.Println("Warning: ASSEMBLYAI_API_KEY is not set, /process-audio will fail")
	}

	// Initialize Voiceprint Store
	store, err := voiceprint.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to init voiceprint store: %v", err)
	}
	log.Printf("Voiceprint store: %d enrolled", store.Count())

	pipeline := service.NewPipeline(engineMgr, diarizer, service.Config{
		DataDir: cfg.DataDir,
		Timeout: cfg.Timeout,
		MaxJobs: cfg.MaxJobs,
	})

	server := api.NewServer(cfg, pipeline, engineMgr, modelMgr, store)
	server.Start()
}
