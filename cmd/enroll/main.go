// Регистрация голоса с микрофона
// Запуск: go run ./cmd/enroll -name "Иван" -seconds 10
// Записывает голос и отправляет на /generate-voiceprint

package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"meetscribe/audio"
)

const (
	sampleRate = 48000
	channels   = 1
)

func main() {
	name := flag.String("name", "", "Speaker name to enroll (required)")
	seconds := flag.Int("seconds", 10, "Recording duration in seconds")
	server := flag.String("server", "http://localhost:8080", "Backend address")
	flag.Parse()

	if *name == "" {
		log.Fatal("Укажите имя: -name \"Иван\"")
	}

	log.Printf("=== Регистрация голоса: %s ===", *name)
	log.Printf("Запись %d секунд с микрофона (%dHz)...", *seconds, sampleRate)

	samples, err := recordMicrophone(*seconds)
	if err != nil {
		log.Fatalf("Ошибка записи: %v", err)
	}
	log.Printf("Записано %d семплов (%.1f сек)", len(samples), float64(len(samples))/float64(sampleRate))

	tmpDir, err := os.MkdirTemp("", "enroll-*")
	if err != nil {
		log.Fatalf("Ошибка создания временной директории: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "enroll.wav")
	if err := audio.WriteWAV(wavPath, samples, sampleRate); err != nil {
		log.Fatalf("Ошибка записи WAV: %v", err)
	}

	log.Printf("Отправка на %s/generate-voiceprint...", *server)
	if err := uploadVoiceprint(*server, *name, wavPath); err != nil {
		log.Fatalf("Ошибка регистрации: %v", err)
	}
}

func recordMicrophone(seconds int) ([]float32, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init context: %w", err)
	}
	defer ctx.Uninit()
	defer ctx.Free()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	var mu sync.Mutex
	var samples []float32

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		sampleCount := int(framecount) * channels
		if len(pInputSamples) != sampleCount*4 {
			return
		}

		chunk := make([]float32, sampleCount)
		for i := 0; i < sampleCount; i++ {
			bits := binary.LittleEndian.Uint32(pInputSamples[i*4:])
			chunk[i] = math.Float32frombits(bits)
		}

		mu.Lock()
		samples = append(samples, chunk...)
		mu.Unlock()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("init device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("start device: %w", err)
	}

	log.Println("Говорите...")
	time.Sleep(time.Duration(seconds) * time.Second)
	device.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio captured")
	}
	return samples, nil
}

func uploadVoiceprint(server, name, wavPath string) error {
	file, err := os.Open(wavPath)
	if err != nil {
		return err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("name", name); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := http.Post(server+"/generate-voiceprint", writer.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Dim        int    `json:"dim"`
		Voiceprint string `json:"voiceprint"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	log.Printf("Готово! id=%s name=%s dim=%d", result.ID, result.Name, result.Dim)
	log.Printf("Voiceprint (base64): %s...", result.Voiceprint[:min(48, len(result.Voiceprint))])
	return nil
}
