package models

// Channel is one playable entry of a playlist snapshot.
// ID is the 1-based position inside the snapshot it came from and changes between
// reloads; Key is derived from the stream URL and stays stable.
type Channel struct {
	ID        int    `json:"id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Group     string `json:"group,omitempty"`
	Logo      string `json:"logo,omitempty"`
	MediaType int16  `json:"media_type"`
}
