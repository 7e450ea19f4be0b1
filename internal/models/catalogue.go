// Package models defines the domain types for wssync.
package models

import "time"

// Fixed file names expected in every mirrored workspace directory.
const (
	TitleFile       = "title.txt"
	AuthorFile      = "author.txt"
	DescriptionFile = "description.txt"
	ReportFile      = "report.pdf"
	LogoFile        = "logo.png"
)

// Entry is one workspace record in the catalogue.
type Entry struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Doc         string `json:"doc"`
	Image       string `json:"image"`
}

// defaultEntry is the placeholder template. It is only ever copied.
var defaultEntry = Entry{
	Title:       "Untitled Workspace",
	Author:      "Unknown",
	Description: "",
	Doc:         "doc.pdf",
	Image:       "/img/default.png",
}

// DefaultEntry returns a fresh copy of the placeholder record stamped with id.
func DefaultEntry(id int) Entry {
	e := defaultEntry
	e.ID = id
	return e
}

// IsDefault reports whether e equals the placeholder apart from its id.
func (e Entry) IsDefault() bool {
	return DefaultEntry(e.ID) == e
}

// FileEntry describes a single file copied (or due to be copied) during a sync.
type FileEntry struct {
	Workspace string    `json:"workspace"`
	Path      string    `json:"path"` // relative to the workspace source dir
	Source    string    `json:"source"`
	Dest      string    `json:"dest"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}
