package models

// Media type constants, guessed from the stream URL.
const (
	MediaTypeLivestream int16 = 0
	MediaTypeMovie      int16 = 1
)
