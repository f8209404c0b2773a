package audio

import "time"

// Utterance is one captured speech episode. It is never modified after
// construction.
type Utterance struct {
	pcm          []byte
	encodingInfo EncodingInfo
}

func NewUtterance(pcm []byte, encodingInfo EncodingInfo) *Utterance {
	return &Utterance{pcm: append([]byte(nil), pcm...), encodingInfo: encodingInfo}
}

// PCM returns the utterance samples. Callers must not modify the slice.
func (u *Utterance) PCM() []byte                { return u.pcm }
func (u *Utterance) EncodingInfo() EncodingInfo { return u.encodingInfo }
func (u *Utterance) Duration() time.Duration    { return u.encodingInfo.Duration(len(u.pcm)) }
