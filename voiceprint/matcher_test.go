package voiceprint

import (
	"fmt"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	if got := CosineSimilarity(a, a); math.Abs(float64(got)-1.0) > 1e-6 {
		t.Errorf("self similarity = %v, want 1.0", got)
	}
	if got := CosineSimilarity(a, b); math.Abs(float64(got)) > 1e-6 {
		t.Errorf("orthogonal similarity = %v, want 0", got)
	}

	neg := []float32{-1, 0, 0}
	if got := CosineSimilarity(a, neg); math.Abs(float64(got)+1.0) > 1e-6 {
		t.Errorf("opposite similarity = %v, want -1.0", got)
	}

	// Симметричность
	c := []float32{0.3, 0.5, 0.2}
	if CosineSimilarity(a, c) != CosineSimilarity(c, a) {
		t.Error("similarity is not symmetric")
	}

	// Деградация: разные длины, пустые
	if got := CosineSimilarity(a, []float32{1, 0}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors = %v, want 0", got)
	}
}

// unit возвращает единичный вектор с углом angle в плоскости (0,1)
func unit(angle float64) []float32 {
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle)), 0}
}

func TestMatchSpeakers_NoEnrolled(t *testing.T) {
	anonymous := map[string][]float32{
		"C": unit(0),
		"A": unit(1),
		"B": unit(2),
	}

	identities, sims := MatchSpeakers(nil, anonymous)

	if len(sims) != 0 {
		t.Errorf("expected no similarities, got %v", sims)
	}
	// Placeholder нумерация в лексикографическом порядке меток
	want := map[string]string{
		"A": "Unknown Speaker 1",
		"B": "Unknown Speaker 2",
		"C": "Unknown Speaker 3",
	}
	for label, name := range want {
		if identities[label] != name {
			t.Errorf("identities[%q] = %q, want %q", label, identities[label], name)
		}
	}
}

func TestMatchSpeakers_SimpleMatch(t *testing.T) {
	enrolled := map[string][]float32{
		"Ivan":  unit(0),
		"Maria": unit(math.Pi / 2),
	}
	anonymous := map[string][]float32{
		"A": unit(0.1),             // близко к Ivan
		"B": unit(math.Pi/2 - 0.1), // близко к Maria
	}

	identities, sims := MatchSpeakers(enrolled, anonymous)

	if identities["A"] != "Ivan" {
		t.Errorf("A matched to %q, want Ivan", identities["A"])
	}
	if identities["B"] != "Maria" {
		t.Errorf("B matched to %q, want Maria", identities["B"])
	}
	if sims["A"] <= ThresholdMin || sims["B"] <= ThresholdMin {
		t.Errorf("accepted similarities must exceed threshold: %v", sims)
	}
}

func TestMatchSpeakers_BelowThreshold(t *testing.T) {
	// Ортогональный вектор: similarity = 0, назначение есть, но отбрасывается
	enrolled := map[string][]float32{
		"Ivan": unit(0),
	}
	anonymous := map[string][]float32{
		"A": unit(math.Pi / 2),
	}

	identities, sims := MatchSpeakers(enrolled, anonymous)

	if identities["A"] != "Unknown Speaker 1" {
		t.Errorf("below-threshold pair accepted: %q", identities["A"])
	}
	if len(sims) != 0 {
		t.Errorf("rejected pair must not appear in similarities: %v", sims)
	}
}

func TestMatchSpeakers_NearThreshold(t *testing.T) {
	// Порог строгий: 0.45 отбрасывается, 0.55 принимается
	enrolled := map[string][]float32{"Ivan": unit(0)}

	tests := []struct {
		similarity float64
		want       string
	}{
		{0.45, "Unknown Speaker 1"},
		{0.55, "Ivan"},
	}
	for _, tt := range tests {
		anonymous := map[string][]float32{"A": unit(math.Acos(tt.similarity))}
		identities, sims := MatchSpeakers(enrolled, anonymous)

		if identities["A"] != tt.want {
			t.Errorf("similarity %.2f: A -> %q, want %q", tt.similarity, identities["A"], tt.want)
		}
		if tt.want == "Ivan" {
			if s, ok := sims["A"]; !ok || math.Abs(float64(s)-tt.similarity) > 1e-3 {
				t.Errorf("similarity %.2f: recorded %v", tt.similarity, sims["A"])
			}
		} else if len(sims) != 0 {
			t.Errorf("similarity %.2f: rejected pair recorded: %v", tt.similarity, sims)
		}
	}
}

func TestMatchSpeakers_OptimalBeatsGreedy(t *testing.T) {
	// Жадный перебор по меткам отдал бы Ivan метке A (0.747) и оставил
	// B с Petr (0.10, ниже порога); оптимум A -> Petr, B -> Ivan
	enrolled := map[string][]float32{
		"Ivan": {1, 0},
		"Petr": {0, 1},
	}
	anonymous := map[string][]float32{
		"A": Normalize([]float32{0.9, 0.8}), // Ivan 0.747, Petr 0.664
		"B": Normalize([]float32{0.99, 0.1}),
	}

	identities, _ := MatchSpeakers(enrolled, anonymous)

	// B почти коллинеарен Ivan, оптимальное назначение отдаёт Ivan метке B
	if identities["B"] != "Ivan" {
		t.Errorf("B matched to %q, want Ivan", identities["B"])
	}
	if identities["A"] != "Petr" {
		t.Errorf("A matched to %q, want Petr", identities["A"])
	}
}

func TestMatchSpeakers_NilVoiceprints(t *testing.T) {
	// Метки с nil отпечатком (сбой извлечения) не участвуют в назначении,
	// но нумеруются общим счётчиком вместе с отклонёнными
	enrolled := map[string][]float32{
		"Ivan": unit(0),
	}
	anonymous := map[string][]float32{
		"A": nil,
		"B": unit(0.05), // матчится с Ivan
		"C": nil,
	}

	identities, _ := MatchSpeakers(enrolled, anonymous)

	if identities["B"] != "Ivan" {
		t.Errorf("B matched to %q, want Ivan", identities["B"])
	}
	if identities["A"] != "Unknown Speaker 1" {
		t.Errorf("A = %q, want Unknown Speaker 1", identities["A"])
	}
	if identities["C"] != "Unknown Speaker 2" {
		t.Errorf("C = %q, want Unknown Speaker 2", identities["C"])
	}
}

func TestMatchSpeakers_MoreNamesThanLabels(t *testing.T) {
	enrolled := map[string][]float32{
		"Ivan":  unit(0),
		"Maria": unit(math.Pi / 2),
		"Petr":  unit(math.Pi),
	}
	anonymous := map[string][]float32{
		"A": unit(math.Pi/2 + 0.05),
	}

	identities, _ := MatchSpeakers(enrolled, anonymous)

	if identities["A"] != "Maria" {
		t.Errorf("A matched to %q, want Maria", identities["A"])
	}
}

func TestMatchSpeakers_EachNameAtMostOnce(t *testing.T) {
	// Оба анонимных спикера близки к Ivan, но имя может достаться
	// только одному - второй уходит в placeholder
	enrolled := map[string][]float32{
		"Ivan": unit(0),
	}
	anonymous := map[string][]float32{
		"A": unit(0.05),
		"B": unit(0.1),
	}

	identities, _ := MatchSpeakers(enrolled, anonymous)

	ivanCount := 0
	for _, name := range identities {
		if name == "Ivan" {
			ivanCount++
		}
	}
	if ivanCount != 1 {
		t.Errorf("Ivan assigned %d times, want 1", ivanCount)
	}
}

func TestLapAssign(t *testing.T) {
	// Известный оптимум: 0->1, 1->0 (стоимость 1+2=3 против 4+5=9)
	cost := [][]float64{
		{4, 1},
		{2, 5},
	}
	got := lapAssign(cost)
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("lapAssign = %v, want [1 0]", got)
	}
}

func TestLapAssign_Rectangular(t *testing.T) {
	// 2 строки, 3 столбца: оптимум 0->2 (1), 1->0 (2)
	cost := [][]float64{
		{5, 9, 1},
		{2, 8, 7},
	}
	got := lapAssign(cost)
	if got[0] != 2 || got[1] != 0 {
		t.Errorf("lapAssign = %v, want [2 0]", got)
	}
}

func TestLapAssign_Larger(t *testing.T) {
	// Перебором проверенный оптимум для 4x4
	cost := [][]float64{
		{9, 2, 7, 8},
		{6, 4, 3, 7},
		{5, 8, 1, 8},
		{7, 6, 9, 4},
	}
	got := lapAssign(cost)

	want := []int{1, 0, 2, 3} // 2+6+1+4 = 13
	total := 0.0
	used := make(map[int]bool)
	for i, j := range got {
		if j < 0 || used[j] {
			t.Fatalf("invalid assignment: %v", got)
		}
		used[j] = true
		total += cost[i][j]
	}

	wantTotal := 0.0
	for i, j := range want {
		wantTotal += cost[i][j]
	}
	if total != wantTotal {
		t.Errorf("assignment cost = %v (%v), want %v (%v)", total, got, wantTotal, want)
	}
}

func TestIsUnknownPlaceholder(t *testing.T) {
	if !IsUnknownPlaceholder("Unknown Speaker 1") {
		t.Error("placeholder not recognized")
	}
	if IsUnknownPlaceholder("Ivan") {
		t.Error("real name flagged as placeholder")
	}
	if IsUnknownPlaceholder(fmt.Sprintf("%s 42", "Unknown Speaker")) == false {
		t.Error("numbered placeholder not recognized")
	}
}
