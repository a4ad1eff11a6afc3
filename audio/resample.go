package audio

// ResampleLinear выполняет линейную интерполяцию для ресемплинга
func ResampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}

// MixdownMono сводит interleaved многоканальный сигнал в моно (среднее каналов)
func MixdownMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := float32(0)
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// ExtractRangeMs вырезает фрагмент [startMs, endMs) из моно сигнала
// Выход за границы сигнала клампится
func ExtractRangeMs(samples []float32, sampleRate int, startMs, endMs int64) []float32 {
	startSample := int(float64(startMs) * float64(sampleRate) / 1000.0)
	endSample := int(float64(endMs) * float64(sampleRate) / 1000.0)

	if startSample < 0 {
		startSample = 0
	}
	if endSample > len(samples) {
		endSample = len(samples)
	}
	if startSample >= endSample {
		return nil
	}

	seg := make([]float32, endSample-startSample)
	copy(seg, samples[startSample:endSample])
	return seg
}
