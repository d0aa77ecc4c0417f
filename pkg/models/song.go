package models

// Unknown is stored for any song attribute the source file did not provide.
const Unknown = "unknown"

// Song is the persisted record of a library song
type Song struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"` // in seconds
}

// SongMetadata is what the metadata collaborator derives from a raw file.
// Empty fields mean the file did not carry them.
type SongMetadata struct {
	FileName string `json:"fileName"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}
