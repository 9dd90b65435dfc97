package voice

import (
	"encoding/binary"
	"math"
)

// Float32ToPCM16 конвертирует сэмплы [-1, 1] в 16-битный little-endian PCM.
//
// Значения вне диапазона обрезаются; отрицательные масштабируются на
// 0x8000, положительные на 0x7fff, дробная часть отбрасывается.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if math.IsNaN(float64(s)) {
			continue
		}
		v := math.Max(-1, math.Min(1, float64(s)))
		var pcm int16
		if v < 0 {
			pcm = int16(v * 0x8000)
		} else {
			pcm = int16(v * 0x7fff)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(pcm))
	}
	return out
}
