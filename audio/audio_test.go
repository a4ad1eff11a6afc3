package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWAVRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wav")

	// Синусоида 440Hz, полсекунды
	sampleRate := 16000
	samples := make([]float32, sampleRate/2)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	if err := WriteWAV(path, samples, sampleRate); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	got, info, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}

	if info.SampleRate != sampleRate {
		t.Errorf("sample rate = %d, want %d", info.SampleRate, sampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("channels = %d, want 1", info.Channels)
	}
	if len(got) != len(samples) {
		t.Fatalf("length = %d, want %d", len(got), len(samples))
	}

	// PCM16 квантование даёт погрешность ~1/32768
	for i := range samples {
		if math.Abs(float64(got[i])-float64(samples[i])) > 0.001 {
			t.Fatalf("sample %d: got %v, want %v", i, got[i], samples[i])
		}
	}
}

func TestWAVWriter_Streaming(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.wav")

	w, err := NewWAVWriter(path, 16000, 1)
	if err != nil {
		t.Fatalf("NewWAVWriter: %v", err)
	}

	// Запись несколькими порциями
	for i := 0; i < 4; i++ {
		if err := w.Write(make([]float32, 1000)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if w.SamplesWritten() != 4000 {
		t.Errorf("SamplesWritten = %d, want 4000", w.SamplesWritten())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, _, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if len(got) != 4000 {
		t.Errorf("read %d samples, want 4000", len(got))
	}
}

func TestReadWAV_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(path, []byte("not a wav file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWAV(path); err == nil {
		t.Error("garbage accepted as WAV")
	}
	if _, _, err := ReadWAV(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("missing file accepted")
	}

	// fmt chunk короче 16 байт - ошибка, не паника
	shortFmt := filepath.Join(dir, "short_fmt.wav")
	var buf []byte
	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, []byte{24, 0, 0, 0}...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, []byte{8, 0, 0, 0}...) // 8 байт вместо минимальных 16
	buf = append(buf, make([]byte, 8)...)
	if err := os.WriteFile(shortFmt, buf, 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWAV(shortFmt); err == nil {
		t.Error("truncated fmt chunk accepted")
	}

	// Заявленный размер chunk'а больше файла
	hugeChunk := filepath.Join(dir, "huge_chunk.wav")
	buf = buf[:0]
	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, []byte{16, 0, 0, 0}...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, []byte{0xF0, 0xFF, 0xFF, 0x7F}...)
	if err := os.WriteFile(hugeChunk, buf, 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWAV(hugeChunk); err == nil {
		t.Error("oversized data chunk accepted")
	}
}

func TestMixdownMono(t *testing.T) {
	// Стерео L=1.0, R=0.0 -> моно 0.5
	stereo := []float32{1, 0, 1, 0, 0.5, 0.5}
	mono := MixdownMono(stereo, 2)

	if len(mono) != 3 {
		t.Fatalf("length = %d, want 3", len(mono))
	}
	want := []float32{0.5, 0.5, 0.5}
	for i := range want {
		if math.Abs(float64(mono[i])-float64(want[i])) > 1e-6 {
			t.Errorf("mono[%d] = %v, want %v", i, mono[i], want[i])
		}
	}

	// Моно возвращается как есть
	orig := []float32{0.1, 0.2}
	if got := MixdownMono(orig, 1); len(got) != 2 || got[0] != 0.1 {
		t.Errorf("mono passthrough broken: %v", got)
	}
}

func TestResampleLinear(t *testing.T) {
	samples := make([]float32, 48000)
	for i := range samples {
		samples[i] = float32(i) / 48000
	}

	down := ResampleLinear(samples, 48000, 16000)
	if len(down) != 16000 {
		t.Errorf("downsampled length = %d, want 16000", len(down))
	}

	// Линейный сигнал остаётся линейным после интерполяции
	mid := down[8000]
	if math.Abs(float64(mid)-0.5) > 0.01 {
		t.Errorf("midpoint = %v, want ~0.5", mid)
	}

	// Одинаковая частота - без изменений
	same := ResampleLinear(samples, 16000, 16000)
	if len(same) != len(samples) {
		t.Error("same-rate resample changed length")
	}
}

func TestExtractRangeMs(t *testing.T) {
	sampleRate := 1000 // 1 семпл = 1 мс для простоты
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = float32(i)
	}

	seg := ExtractRangeMs(samples, sampleRate, 100, 200)
	if len(seg) != 100 {
		t.Errorf("segment length = %d, want 100", len(seg))
	}
	if seg[0] != 100 {
		t.Errorf("segment start = %v, want 100", seg[0])
	}

	// Кламп выхода за границы
	clamped := ExtractRangeMs(samples, sampleRate, 900, 5000)
	if len(clamped) != 100 {
		t.Errorf("clamped length = %d, want 100", len(clamped))
	}

	// Пустой диапазон
	if got := ExtractRangeMs(samples, sampleRate, 500, 500); got != nil {
		t.Errorf("empty range returned %d samples", len(got))
	}
	if got := ExtractRangeMs(samples, sampleRate, 2000, 3000); got != nil {
		t.Errorf("out-of-bounds range returned %d samples", len(got))
	}
}

func TestEncodeMP3(t *testing.T) {
	// Секунда синуса 440Hz @ 16kHz
	sampleRate := 16000
	samples := make([]float32, sampleRate)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	data, err := EncodeMP3(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeMP3: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty MP3 output")
	}

	// MP3 frame начинается с sync паттерна 0xFF
	if data[0] != 0xFF {
		t.Errorf("first byte = %#x, want MP3 sync 0xFF", data[0])
	}
}

func TestIsSupportedExt(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"recording.wav", true},
		{"recording.WAV", true},
		{"recording.mp3", true},
		{"recording.ogg", false},
		{"recording", false},
	}
	for _, tt := range tests {
		if got := IsSupportedExt(tt.path); got != tt.want {
			t.Errorf("IsSupportedExt(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
