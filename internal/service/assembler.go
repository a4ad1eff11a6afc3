package service

import (
	"encoding/base64"
	"fmt"
	"log"
	"path/filepath"

	"meetscribe/ai"
	"meetscribe/audio"
)

// SnippetSeconds длина preview snippet для нераспознанных спикеров
const SnippetSeconds = 5

// SpeakerClip склеенное аудио одного анонимного спикера
type SpeakerClip struct {
	Label      string    // Анонимная метка ("A", "B", ...)
	Samples    []float32 // Моно, исходная частота
	SampleRate int
	Path       string // WAV файл в scratch директории
}

// AssembleClips склеивает реплики каждого спикера в один клип
// Фрагменты [startMs, endMs) идут в порядке транскрипта
// Клипы пишутся как WAV в scratchDir
func AssembleClips(samples []float32, sampleRate int, utterances []ai.Utterance, scratchDir string) (map[string]*SpeakerClip, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples")
	}

	clips := make(map[string]*SpeakerClip)

	for _, u := range utterances {
		seg := audio.ExtractRangeMs(samples, sampleRate, u.StartMs, u.EndMs)
		if len(seg) == 0 {
			continue
		}

		clip, ok := clips[u.Speaker]
		if !ok {
			clip = &SpeakerClip{
				Label:      u.Speaker,
				SampleRate: sampleRate,
			}
			clips[u.Speaker] = clip
		}
		clip.Samples = append(clip.Samples, seg...)
	}

	// Сохраняем клипы на диск
	for label, clip := range clips {
		path := filepath.Join(scratchDir, fmt.Sprintf("speaker_%s.wav", label))
		if err := audio.WriteWAV(path, clip.Samples, clip.SampleRate); err != nil {
			return nil, fmt.Errorf("failed to write clip for speaker %s: %w", label, err)
		}
		clip.Path = path

		log.Printf("[Assembler] Speaker %s: %.1f sec of audio",
			label, float64(len(clip.Samples))/float64(clip.SampleRate))
	}

	return clips, nil
}

// Snippet возвращает первые SnippetSeconds секунд клипа
// как data:audio/mp3;base64 URI
func (c *SpeakerClip) Snippet() (string, error) {
	n := SnippetSeconds * c.SampleRate
	if n > len(c.Samples) {
		n = len(c.Samples)
	}
	if n == 0 {
		return "", fmt.Errorf("empty clip")
	}

	encoded, err := audio.EncodeMP3(c.Samples[:n], c.SampleRate)
	if err != nil {
		return "", err
	}

	return "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(encoded), nil
}

// EmbeddingSamples возвращает клип приведённым к моно 16kHz для движка
func (c *SpeakerClip) EmbeddingSamples() []float32 {
	if c.SampleRate == ai.EmbeddingSampleRate {
		return c.Samples
	}
	return audio.ResampleLinear(c.Samples, c.SampleRate, ai.EmbeddingSampleRate)
}
