package audio

import (
	"math"

	"github.com/faiface/beep"
)

const resampleQuality = 4

// PCMStreamer exposes mono linear16 PCM as a beep.Streamer.
type PCMStreamer struct {
	samples []int16
	pos     int
}

func NewPCMStreamer(pcm []byte) *PCMStreamer {
	return &PCMStreamer{samples: BytesToSamples(pcm)}
}

func (s *PCMStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	for n < len(samples) && s.pos < len(s.samples) {
		v := float64(s.samples[s.pos]) / math.MaxInt16
		samples[n] = [2]float64{v, v}
		n++
		s.pos++
	}
	return n, true
}

func (s *PCMStreamer) Err() error { return nil }
func (s *PCMStreamer) Len() int   { return len(s.samples) }

// ReadPCM drains s into mono linear16 PCM, averaging the two channels. With
// limit above zero at most limit samples are read and a stream that ends
// early is padded with silence up to limit.
func ReadPCM(s beep.Streamer, limit int) ([]byte, error) {
	var samples []int16
	buf := make([][2]float64, 512)
	for limit <= 0 || len(samples) < limit {
		want := buf
		if limit > 0 {
			want = buf[:min(len(buf), limit-len(samples))]
		}
		n, ok := s.Stream(want)
		for _, sample := range want[:n] {
			samples = append(samples, toInt16((sample[0]+sample[1])/2))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(samples) < limit {
		samples = append(samples, make([]int16, limit-len(samples))...)
	}
	return SamplesToBytes(samples), nil
}

func toInt16(v float64) int16 {
	v = math.Round(v * math.MaxInt16)
	return int16(max(math.MinInt16, min(math.MaxInt16, v)))
}

// Resampled wraps s so it plays at toRate.
func Resampled(s beep.Streamer, fromRate, toRate int) beep.Streamer {
	return beep.Resample(resampleQuality, beep.SampleRate(fromRate), beep.SampleRate(toRate), s)
}

// ResampleBytes converts mono linear16 PCM between sample rates. The output
// length is the input length scaled by toRate/fromRate.
func ResampleBytes(data []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(data) < 2 {
		return data
	}
	source := NewPCMStreamer(data)
	want := int(int64(source.Len()) * int64(toRate) / int64(fromRate))
	if want == 0 {
		return []byte{}
	}
	pcm, _ := ReadPCM(Resampled(source, fromRate, toRate), want)
	return pcm
}
