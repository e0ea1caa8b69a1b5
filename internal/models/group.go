package models

// Group is a category of channels (group-title from the EXTINF line).
type Group struct {
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
}

// DefaultGroup collects channels that carry no group-title.
const DefaultGroup = "Ao Vivo"
