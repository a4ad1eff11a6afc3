package voiceprint

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// UnknownSpeakerPrefix префикс для нераспознанных спикеров
const UnknownSpeakerPrefix = "Unknown Speaker"

// IsUnknownPlaceholder проверяет, является ли имя placeholder'ом
func IsUnknownPlaceholder(name string) bool {
	return strings.HasPrefix(name, UnknownSpeakerPrefix)
}

// CosineSimilarity вычисляет косинусное сходство между двумя векторами
// Возвращает значение от -1 до 1, где 1 = идентичные
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// MatchSpeakers сопоставляет анонимных спикеров с зарегистрированными голосами
//
// enrolled: имя -> единичный вектор
// anonymous: анонимная метка ("A", "B", ...) -> вектор или nil,
// если отпечаток для метки извлечь не удалось
//
// Возвращает метка -> имя (или "Unknown Speaker N") и similarity принятых пар.
// Сопоставление оптимальное (минимизация суммарной 1-similarity по всем парам),
// порог применяется после назначения: пары с similarity <= ThresholdMin
// отбрасываются. Один счётчик нумерует все нераспознанные метки в
// лексикографическом порядке.
func MatchSpeakers(enrolled map[string][]float32, anonymous map[string][]float32) (map[string]string, map[string]float32) {
	identities := make(map[string]string, len(anonymous))
	similarities := make(map[string]float32)

	// Все метки в лексикографическом порядке
	labels := make([]string, 0, len(anonymous))
	for label := range anonymous {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	// Метки с валидным отпечатком участвуют в назначении,
	// остальные идут сразу в placeholder нумерацию
	validLabels := make([]string, 0, len(labels))
	for _, label := range labels {
		if anonymous[label] != nil {
			validLabels = append(validLabels, label)
		}
	}

	names := make([]string, 0, len(enrolled))
	for name := range enrolled {
		names = append(names, name)
	}
	sort.Strings(names)

	// Нечего сопоставлять - все метки получают placeholder
	if len(names) == 0 || len(validLabels) == 0 {
		counter := 1
		for _, label := range labels {
			identities[label] = fmt.Sprintf("%s %d", UnknownSpeakerPrefix, counter)
			counter++
		}
		return identities, similarities
	}

	// Матрица сходства: строки = имена, столбцы = метки
	sim := mat.NewDense(len(names), len(validLabels), nil)
	for i, name := range names {
		for j, label := range validLabels {
			sim.Set(i, j, float64(CosineSimilarity(enrolled[name], anonymous[label])))
		}
	}

	// Оптимальное назначение минимизирует суммарную стоимость (1 - similarity)
	// labelToName[j] = индекс имени для метки j, или -1
	labelToName := make([]int, len(validLabels))
	for j := range labelToName {
		labelToName[j] = -1
	}

	if len(names) <= len(validLabels) {
		cost := make([][]float64, len(names))
		for i := range cost {
			cost[i] = make([]float64, len(validLabels))
			for j := range cost[i] {
				cost[i][j] = 1.0 - sim.At(i, j)
			}
		}
		rowToCol := lapAssign(cost)
		for i, j := range rowToCol {
			if j >= 0 {
				labelToName[j] = i
			}
		}
	} else {
		// Меток меньше чем имён - назначаем по меткам
		cost := make([][]float64, len(validLabels))
		for j := range cost {
			cost[j] = make([]float64, len(names))
			for i := range cost[j] {
				cost[j][i] = 1.0 - sim.At(i, j)
			}
		}
		rowToCol := lapAssign(cost)
		for j, i := range rowToCol {
			labelToName[j] = i
		}
	}

	// Принимаем пары только выше порога, остальные идут в нумерацию.
	// Порог применяется после оптимального назначения
	matched := make(map[string]string, len(validLabels))
	for j, label := range validLabels {
		i := labelToName[j]
		if i < 0 {
			continue
		}
		similarity := float32(sim.At(i, j))
		if similarity > ThresholdMin {
			matched[label] = names[i]
			similarities[label] = similarity
			log.Printf("[VoicePrint] Match: %s -> %s (similarity=%.3f, confidence=%s)",
				label, names[i], similarity, GetConfidence(similarity))
		} else {
			log.Printf("[VoicePrint] Rejected: %s -> %s (similarity=%.3f below threshold)",
				label, names[i], similarity)
		}
	}

	// Один счётчик для всех нераспознанных меток, в лексикографическом порядке
	counter := 1
	for _, label := range labels {
		if name, ok := matched[label]; ok {
			identities[label] = name
		} else {
			identities[label] = fmt.Sprintf("%s %d", UnknownSpeakerPrefix, counter)
			counter++
		}
	}

	return identities, similarities
}

// lapAssign решает задачу о назначениях для прямоугольной матрицы стоимостей
// n x m (n <= m) методом кратчайших увеличивающих путей (Jonker-Volgenant)
// Возвращает для каждой строки назначенный столбец
func lapAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])

	const inf = math.MaxFloat64

	// Потенциалы и назначения, 1-based
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1) // p[j] = строка, назначенная столбцу j (0 = свободен)
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = inf
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0

			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// Разворачиваем увеличивающий путь
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowToCol := make([]int, n)
	for i := range rowToCol {
		rowToCol[i] = -1
	}
	for j := 1; j <= m; j++ {
		if p[j] > 0 {
			rowToCol[p[j]-1] = j - 1
		}
	}
	return rowToCol
}
