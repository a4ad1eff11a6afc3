package models

import (
	"strings"
	"testing"
)

func TestRegistry(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Registry {
		if m.ID == "" || m.Name == "" || m.DownloadURL == "" {
			t.Errorf("incomplete model entry: %+v", m)
		}
		if seen[m.ID] {
			t.Errorf("duplicate model ID: %s", m.ID)
		}
		seen[m.ID] = true

		if m.Dim <= 0 {
			t.Errorf("model %s has no embedding dimension", m.ID)
		}
		if m.Engine != EngineTypeWeSpeaker && m.Engine != EngineTypeSherpa {
			t.Errorf("model %s has unknown engine %q", m.ID, m.Engine)
		}
		if !strings.HasSuffix(m.DownloadURL, ".onnx") {
			t.Errorf("model %s download URL is not a single ONNX file: %s", m.ID, m.DownloadURL)
		}
	}
}

func TestGetModelByID(t *testing.T) {
	m := GetModelByID(DefaultModelID)
	if m == nil {
		t.Fatal("default model missing from registry")
	}
	if !m.Recommended {
		t.Error("default model is not recommended")
	}

	if GetModelByID("no-such-model") != nil {
		t.Error("unknown ID returned a model")
	}
}

func TestGetModelsByEngine(t *testing.T) {
	sherpa := GetModelsByEngine(EngineTypeSherpa)
	wespeaker := GetModelsByEngine(EngineTypeWeSpeaker)

	if len(sherpa) == 0 || len(wespeaker) == 0 {
		t.Errorf("both engines must have models: sherpa=%d wespeaker=%d", len(sherpa), len(wespeaker))
	}
	if len(sherpa)+len(wespeaker) != len(Registry) {
		t.Error("engine partition does not cover the registry")
	}
}
