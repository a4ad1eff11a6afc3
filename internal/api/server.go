package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"meetscribe/ai"
	"meetscribe/audio"
	"meetscribe/internal/config"
	"meetscribe/internal/service"
	"meetscribe/models"
	"meetscribe/voiceprint"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	Config    *config.Config
	Pipeline  *service.Pipeline
	EngineMgr *ai.EngineManager
	ModelMgr  *models.Manager
	Store     *voiceprint.Store

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func NewServer(
	cfg *config.Config,
	pipeline *service.Pipeline,
	engMgr *ai.EngineManager,
	modMgr *models.Manager,
	store *voiceprint.Store,
) *Server {
	s := &Server{
		Config:    cfg,
		Pipeline:  pipeline,
		EngineMgr: engMgr,
		ModelMgr:  modMgr,
		Store:     store,
		clients:   make(map[*websocket.Conn]bool),
	}
	s.setupCallbacks()
	return s
}

func (s *Server) Start() {
	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/process-audio", s.withCORS(s.handleProcessAudio))
	http.HandleFunc("/generate-voiceprint", s.withCORS(s.handleGenerateVoiceprint))
	http.HandleFunc("/voiceprints", s.withCORS(s.handleVoiceprints))
	http.HandleFunc("/voiceprints/", s.withCORS(s.handleVoiceprintByID))
	http.HandleFunc("/health", s.withCORS(s.handleHealth))

	go s.startGRPCServer()

	log.Printf("Backend listening on :%s", s.Config.Port)
	if err := http.ListenAndServe(":"+s.Config.Port, nil); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}

func (s *Server) setupCallbacks() {
	// Model Progress
	s.ModelMgr.SetProgressCallback(func(modelID string, progress float64, status models.ModelStatus, err error) {
		errStr := ""
		if err != nil {
			errStr = err.Error()
		}
		s.broadcast(Message{
			Type:     "model_progress",
			ModelID:  modelID,
			Progress: progress,
			Data:     string(status),
			Error:    errStr,
		})
	})

	// Job lifecycle events -> websocket/gRPC subscribers
	if s.Pipeline != nil {
		s.Pipeline.SetEventCallback(func(ev service.Event) {
			s.broadcast(Message{
				Type:   ev.Type,
				JobID:  ev.JobID,
				Status: string(ev.Status),
				Detail: ev.Detail,
			})
		})
	}
}

// withCORS добавляет CORS заголовки (dev frontend работает на другом порту)
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errName, detail string) {
	writeJSON(w, status, ErrorResponse{Error: errName, Detail: detail})
}

// mapPipelineError отображает типизированные ошибки pipeline в HTTP статусы
func mapPipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, service.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, service.ErrEngineUnavailable):
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable", err.Error())
	default:
		// ErrDiarization и все внутренние сбои
		writeError(w, http.StatusInternalServerError, "processing_failed", err.Error())
	}
}

// saveUpload сохраняет multipart файл во временную директорию,
// сохраняя расширение оригинала
func (s *Server) saveUpload(r *http.Request, field string) (string, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing %q file field: %w", field, err)
	}
	defer file.Close()

	tmpDir, err := os.MkdirTemp(filepath.Join(s.Config.DataDir, "uploads"), "upload-*")
	if err != nil {
		// uploads директория могла не существовать
		if mkErr := os.MkdirAll(filepath.Join(s.Config.DataDir, "uploads"), 0755); mkErr == nil {
			tmpDir, err = os.MkdirTemp(filepath.Join(s.Config.DataDir, "uploads"), "upload-*")
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to create upload dir: %w", err)
		}
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	ext := strings.ToLower(filepath.Ext(header.Filename))
	dstPath := filepath.Join(tmpDir, "audio"+ext)
	dst, err := os.Create(dstPath)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to save upload: %w", err)
	}

	return dstPath, cleanup, nil
}

// handleProcessAudio обрабатывает POST /process-audio:
// multipart файл + enrolled_voiceprints_json -> транскрипт с именами
func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid multipart form: "+err.Error())
		return
	}

	// Зарегистрированные отпечатки: {"Имя": "base64...", ...}
	enrolled := make(map[string]string)
	if raw := r.FormValue("enrolled_voiceprints_json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &enrolled); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid enrolled_voiceprints_json: "+err.Error())
			return
		}
	}

	audioPath, cleanup, err := s.saveUpload(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	defer cleanup()

	result, err := s.Pipeline.Process(r.Context(), audioPath, enrolled)
	if err != nil {
		mapPipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGenerateVoiceprint обрабатывает POST /generate-voiceprint:
// multipart файл + name -> отпечаток, сохранённый в store
func (s *Server) handleGenerateVoiceprint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid multipart form: "+err.Error())
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "name is required")
		return
	}

	if !s.EngineMgr.IsLoaded() {
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable", "no embedding engine loaded")
		return
	}

	audioPath, cleanup, err := s.saveUpload(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	defer cleanup()

	if err := service.ValidateAudioFile(audioPath); err != nil {
		mapPipelineError(w, err)
		return
	}

	samples, err := audio.LoadMonoResampled(audioPath, ai.EmbeddingSampleRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "failed to decode audio: "+err.Error())
		return
	}

	extractor := voiceprint.NewExtractor(s.EngineMgr)
	embedding, err := extractor.Extract(samples)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "extraction_failed", err.Error())
		return
	}

	vp, err := s.Store.Add(name, embedding, "api")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, VoiceprintResponse{
		ID:         vp.ID,
		Name:       vp.Name,
		Dim:        len(embedding),
		Voiceprint: voiceprint.Encode(embedding),
	})
}

// handleVoiceprints обрабатывает GET /voiceprints - список без векторов
func (s *Server) handleVoiceprints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	all := s.Store.GetAll()
	infos := make([]VoiceprintInfo, len(all))
	for i, vp := range all {
		infos[i] = VoiceprintInfo{
			ID:         vp.ID,
			Name:       vp.Name,
			Dim:        len(vp.Embedding),
			CreatedAt:  vp.CreatedAt,
			LastSeenAt: vp.LastSeenAt,
			SeenCount:  vp.SeenCount,
			Source:     vp.Source,
		}
	}

	writeJSON(w, http.StatusOK, infos)
}

// handleVoiceprintByID обрабатывает DELETE /voiceprints/{id}
func (s *Server) handleVoiceprintByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/voiceprints/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "voiceprint id is required")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := s.Store.Delete(id); err != nil {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})

	case http.MethodGet:
		vp, err := s.Store.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, VoiceprintInfo{
			ID:         vp.ID,
			Name:       vp.Name,
			Dim:        len(vp.Embedding),
			CreatedAt:  vp.CreatedAt,
			LastSeenAt: vp.LastSeenAt,
			SeenCount:  vp.SeenCount,
			Source:     vp.Source,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or DELETE")
	}
}

// handleHealth обрабатывает GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		EngineLoaded: s.EngineMgr.IsLoaded(),
		Device:       s.EngineMgr.Provider(),
		Dim:          s.EngineMgr.Dim(),
		Model:        s.EngineMgr.GetActiveModelID(),
		ActiveJobs:   s.Pipeline.ActiveJobs(),
	}
	if !resp.EngineLoaded {
		resp.Status = "degraded"
		resp.Device = "none"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) broadcast(msg Message) {
	s.broadcastGRPC(msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return
	}

	// WriteJSON не потокобезопасен per-connection, поэтому все записи
	// сериализуются общим локом
	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Write error: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade:", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Println("Read:", err)
			break
		}
		s.processMessage(func(m Message) error { return conn.WriteJSON(m) }, msg)
	}
}

// processMessage обрабатывает команду управления (общая для ws и gRPC)
func (s *Server) processMessage(reply func(Message) error, msg Message) {
	switch msg.Type {
	case "get_models":
		reply(Message{
			Type:   "models_list",
			Models: s.ModelMgr.GetAllModelsState(),
		})

	case "download_model":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Data: "modelId is required"})
			return
		}
		if err := s.ModelMgr.DownloadModel(msg.ModelID); err != nil {
			reply(Message{Type: "error", Data: err.Error()})
			return
		}
		reply(Message{Type: "download_started", ModelID: msg.ModelID})

	case "cancel_download":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Data: "modelId is required"})
			return
		}
		s.ModelMgr.CancelDownload(msg.ModelID)
		reply(Message{Type: "download_cancelled", ModelID: msg.ModelID})

	case "delete_model":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Data: "modelId is required"})
			return
		}
		s.ModelMgr.DeleteModel(msg.ModelID)
		reply(Message{Type: "model_deleted", ModelID: msg.ModelID})
		reply(Message{Type: "models_list", Models: s.ModelMgr.GetAllModelsState()})

	case "set_active_model":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Data: "modelId is required"})
			return
		}
		if !s.ModelMgr.IsModelDownloaded(msg.ModelID) {
			reply(Message{Type: "error", Data: "model not downloaded"})
			return
		}
		provider := msg.Provider
		if provider == "" {
			provider = s.Config.Provider
		}
		if err := s.EngineMgr.SetActiveModel(msg.ModelID, provider); err != nil {
			reply(Message{Type: "error", Data: err.Error()})
			return
		}
		reply(Message{Type: "active_model_changed", ModelID: msg.ModelID, Provider: s.EngineMgr.Provider()})
		reply(Message{Type: "models_list", Models: s.ModelMgr.GetAllModelsState()})

	case "get_status":
		status := "ok"
		if !s.EngineMgr.IsLoaded() {
			status = "degraded"
		}
		reply(Message{
			Type:     "status",
			Status:   status,
			ModelID:  s.EngineMgr.GetActiveModelID(),
			Provider: s.EngineMgr.Provider(),
		})
	}
}
