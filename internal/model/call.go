package model

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

// Valid reports whether t is audio or video.
func (t CallType) Valid() bool {
	return t == CallAudio || t == CallVideo
}
