package voiceprint

import (
	"fmt"
	"math"
	"testing"
)

// fakeEmbedder возвращает заранее заданный вектор и запоминает вход
type fakeEmbedder struct {
	result   []float32
	err      error
	lastLen  int
	numCalls int
}

func (f *fakeEmbedder) Embed(samples []float32) ([]float32, error) {
	f.lastLen = len(samples)
	f.numCalls++
	return f.result, f.err
}

func (f *fakeEmbedder) Dim() int { return len(f.result) }

func TestExtract_PadsShortAudio(t *testing.T) {
	emb := &fakeEmbedder{result: []float32{1, 2, 2}}
	e := NewExtractor(emb)

	// Полсекунды аудио дополняется до MinSamples
	short := make([]float32, MinSamples/2)
	vp, err := e.Extract(short)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if emb.lastLen != MinSamples {
		t.Errorf("embedder got %d samples, want %d", emb.lastLen, MinSamples)
	}
	if emb.numCalls != 1 {
		t.Errorf("embedder called %d times, want 1", emb.numCalls)
	}

	// Результат нормализован: (1,2,2)/3
	var sumSq float64
	for _, x := range vp {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1.0) > 1e-6 {
		t.Errorf("result not unit-length: %v", sumSq)
	}
}

func TestExtract_LongAudioNotPadded(t *testing.T) {
	emb := &fakeEmbedder{result: []float32{0.5, 0.5}}
	e := NewExtractor(emb)

	long := make([]float32, MinSamples*3)
	if _, err := e.Extract(long); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if emb.lastLen != MinSamples*3 {
		t.Errorf("embedder got %d samples, want %d", emb.lastLen, MinSamples*3)
	}
}

func TestExtract_Errors(t *testing.T) {
	e := NewExtractor(&fakeEmbedder{result: []float32{1, 0}})
	if _, err := e.Extract(nil); err == nil {
		t.Error("empty audio accepted")
	}

	e = NewExtractor(&fakeEmbedder{err: fmt.Errorf("engine crashed")})
	if _, err := e.Extract(make([]float32, MinSamples)); err == nil {
		t.Error("engine error not propagated")
	}

	// NaN от движка - ошибка, не паника
	e = NewExtractor(&fakeEmbedder{result: []float32{float32(math.NaN()), 1}})
	if _, err := e.Extract(make([]float32, MinSamples)); err == nil {
		t.Error("NaN embedding accepted")
	}
}

func TestExtractEncoded(t *testing.T) {
	e := NewExtractor(&fakeEmbedder{result: []float32{3, 4}})

	encoded, err := e.ExtractEncoded(make([]float32, MinSamples))
	if err != nil {
		t.Fatalf("ExtractEncoded: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if math.Abs(float64(decoded[0])-0.6) > 1e-6 || math.Abs(float64(decoded[1])-0.8) > 1e-6 {
		t.Errorf("decoded = %v, want [0.6 0.8]", decoded)
	}
}

func TestDecodeEnrolled(t *testing.T) {
	good := Encode([]float32{0.6, 0.8})
	encoded := map[string]string{
		"Ivan":   good,
		"Broken": "not-base64!!!",
		"Wrong":  Encode([]float32{1, 2, 3}), // неверная размерность
	}

	enrolled := DecodeEnrolled(encoded, 2)

	if len(enrolled) != 1 {
		t.Fatalf("expected 1 valid entry, got %d", len(enrolled))
	}
	if _, ok := enrolled["Ivan"]; !ok {
		t.Error("valid entry missing")
	}
}
