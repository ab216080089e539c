package models

import "time"

// Source describes where the currently loaded playlist came from.
type Source struct {
	Kind     string     `json:"kind"`               // SourceURL, SourceFile or SourceUpload
	Location string     `json:"location,omitempty"` // URL or file path; empty for uploads
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}
