package voiceprint

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	original := []float32{0.5, -0.25, 1.0, 0.0, -1.0, 0.123456}

	encoded := Encode(original)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: got %d, want %d", len(decoded), len(original))
	}
	// float32 -> bytes -> float32 должно быть без потерь
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("value mismatch at %d: got %v, want %v", i, decoded[i], original[i])
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"empty", ""},
		{"wrong length", "AAA="}, // 2 байта после декодирования
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.encoded); err == nil {
				t.Errorf("expected error for %q", tt.encoded)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := []float32{0.1, 0.2, 0.3}

	if err := Validate(valid, 0); err != nil {
		t.Errorf("valid embedding rejected: %v", err)
	}
	if err := Validate(valid, 3); err != nil {
		t.Errorf("valid embedding with dim check rejected: %v", err)
	}
	if err := Validate(valid, 256); err == nil {
		t.Error("dimension mismatch not detected")
	}
	if err := Validate(nil, 0); err == nil {
		t.Error("empty embedding not detected")
	}
	if err := Validate([]float32{0.1, float32(math.NaN()), 0.3}, 0); err == nil {
		t.Error("NaN not detected")
	}
	if err := Validate([]float32{float32(math.Inf(1)), 0.2}, 0); err == nil {
		t.Error("Inf not detected")
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4} // длина 5
	n := Normalize(v)

	var sumSq float64
	for _, x := range n {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1.0) > 1e-6 {
		t.Errorf("normalized length squared = %v, want 1.0", sumSq)
	}

	// Исходный вектор не изменяется
	if v[0] != 3 || v[1] != 4 {
		t.Error("Normalize mutated input")
	}

	// Нулевой вектор возвращается как есть
	zero := []float32{0, 0, 0}
	nz := Normalize(zero)
	for i, x := range nz {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %v", i, x)
		}
	}
}

func TestGetConfidence(t *testing.T) {
	tests := []struct {
		similarity float32
		want       string
	}{
		{0.95, "high"},
		{0.85, "high"},
		{0.75, "medium"},
		{0.70, "medium"},
		{0.60, "low"},
		{0.51, "low"},
		{0.50, "none"}, // ровно на пороге - не принимается
		{0.10, "none"},
		{-0.5, "none"},
	}

	for _, tt := range tests {
		if got := GetConfidence(tt.similarity); got != tt.want {
			t.Errorf("GetConfidence(%v) = %q, want %q", tt.similarity, got, tt.want)
		}
	}
}
