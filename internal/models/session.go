package models

// Session is an on-disk working area for one research activity.
type Session struct {
	Type SessionType `json:"type"`
	Slug string      `json:"slug"`
	Dir  string      `json:"dir"`
}

// Subdirs returns the fixed subdirectories created inside a session of type t.
func Subdirs(t SessionType) []string {
	dirs := []string{"notes", "artifacts"}
	if t == SessionSpike {
		dirs = append(dirs, "src")
	}
	return dirs
}
