package audio

import "time"

const (
	DefaultVADThreshold      = 0.02
	DefaultSilenceDuration   = 800 * time.Millisecond
	DefaultMinSpeechDuration = 300 * time.Millisecond
	DefaultFrameDuration     = 100 * time.Millisecond
)

type SegmenterConfig struct {
	// Threshold is the RMS level above which a frame counts as speech.
	Threshold float64
	// SilenceDuration is how much trailing silence ends an utterance.
	SilenceDuration time.Duration
	// MinSpeechDuration is the voiced length an attempt must exceed to be kept.
	MinSpeechDuration time.Duration
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		Threshold:         DefaultVADThreshold,
		SilenceDuration:   DefaultSilenceDuration,
		MinSpeechDuration: DefaultMinSpeechDuration,
	}
}

// Segmenter splits a stream of frames into utterances using energy based
// voice activity detection.
//
// The voiced duration of an attempt runs from its first speech frame through
// its last speech frame, so trailing silence never counts towards the minimum.
type Segmenter struct {
	config SegmenterConfig

	speaking        bool
	buffer          []byte
	elapsed         time.Duration
	voiced          time.Duration
	trailingSilence time.Duration
}

func NewSegmenter(config SegmenterConfig) *Segmenter {
	return &Segmenter{config: config}
}

// Speaking reports whether an attempt is currently being accumulated.
func (s *Segmenter) Speaking() bool { return s.speaking }

// Push feeds one frame of the given duration. It returns the accumulated
// utterance and true once trailing silence ends an attempt that was long
// enough. Short attempts are discarded silently.
func (s *Segmenter) Push(frame []byte, duration time.Duration) ([]byte, bool) {
	if RMS(frame) > s.config.Threshold {
		if !s.speaking {
			s.speaking = true
			s.elapsed = 0
		}
		s.buffer = append(s.buffer, frame...)
		s.elapsed += duration
		s.voiced = s.elapsed
		s.trailingSilence = 0
		return nil, false
	}

	if !s.speaking {
		return nil, false
	}

	s.buffer = append(s.buffer, frame...)
	s.elapsed += duration
	s.trailingSilence += duration
	if s.trailingSilence <= s.config.SilenceDuration {
		return nil, false
	}

	if s.voiced > s.config.MinSpeechDuration {
		utterance := s.buffer
		s.Reset()
		return utterance, true
	}

	s.Reset()
	return nil, false
}

// Reset drops any partial attempt.
func (s *Segmenter) Reset() {
	s.speaking = false
	s.buffer = nil
	s.elapsed = 0
	s.voiced = 0
	s.trailingSilence = 0
}
