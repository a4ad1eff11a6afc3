package ai

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
)

// AssemblyAIDiarizer реализует DiarizingTranscriber через AssemblyAI API
type AssemblyAIDiarizer struct {
	client *aai.Client
}

// NewAssemblyAIDiarizer создаёт новый диаризатор
// apiKey - ключ AssemblyAI (обычно из ASSEMBLYAI_API_KEY)
func NewAssemblyAIDiarizer(apiKey string) (*AssemblyAIDiarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("AssemblyAI API key is empty")
	}
	return &AssemblyAIDiarizer{
		client: aai.NewClient(apiKey),
	}, nil
}

// Transcribe отправляет аудио файл и возвращает диаризованные реплики
// Блокируется до завершения обработки на стороне сервиса (или отмены ctx)
func (d *AssemblyAIDiarizer) Transcribe(ctx context.Context, audioPath string) ([]Utterance, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	params := &aai.TranscriptOptionalParams{
		SpeakerLabels:     aai.Bool(true),
		LanguageDetection: aai.Bool(true),
	}

	transcript, err := d.client.Transcripts.TranscribeFromReader(ctx, file, params)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	if transcript.Status == aai.TranscriptStatusError {
		detail := "unknown error"
		if transcript.Error != nil {
			detail = *transcript.Error
		}
		return nil, fmt.Errorf("transcription failed: %s", detail)
	}

	if len(transcript.Utterances) == 0 {
		return nil, fmt.Errorf("no utterances returned (no speech detected?)")
	}

	utterances := make([]Utterance, 0, len(transcript.Utterances))
	for _, u := range transcript.Utterances {
		utt := Utterance{}
		if u.Speaker != nil {
			utt.Speaker = *u.Speaker
		}
		if u.Text != nil {
			utt.Text = *u.Text
		}
		if u.Start != nil {
			utt.StartMs = *u.Start
		}
		if u.End != nil {
			utt.EndMs = *u.End
		}
		utterances = append(utterances, utt)
	}

	// API возвращает реплики по порядку, но гарантируем сортировку сами
	sort.SliceStable(utterances, func(i, j int) bool {
		return utterances[i].StartMs < utterances[j].StartMs
	})

	log.Printf("[AssemblyAI] transcription complete: %d utterances", len(utterances))
	return utterances, nil
}
