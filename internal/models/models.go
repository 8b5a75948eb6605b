package models

import (
	"time"
)

// Repository represents the GitHub repository metadata the analysis needs
type Repository struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	URL           string `json:"url"`
	DefaultBranch string `json:"default_branch"`
	Description   string `json:"description"`
}

// TreeEntry is one node of a recursive git tree
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob", "tree" or "commit"
}

// Commit represents a commit as returned by the commit list endpoint
type Commit struct {
	SHA        string    `json:"sha"`
	Message    string    `json:"message"`
	AuthorName string    `json:"author_name"`
	Date       time.Time `json:"date"` // committer date
}

// CommitFile is one file entry of a commit diff
type CommitFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// CommitDetail is a commit with its file-level diff
type CommitDetail struct {
	SHA   string       `json:"sha"`
	Files []CommitFile `json:"files"`
}

// Tag represents a lightweight or annotated tag
type Tag struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commit_sha"`
}

// Release represents a GitHub release
type Release struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RepositoryContext is everything the discovery prompt is built from.
// It lives for a single analysis request.
type RepositoryContext struct {
	Readme          string
	TreePaths       []string
	CommitsSummary  string
	ReleasesSummary string
	Commits         []Commit
	Releases        []Release
	Tags            []Tag
}

// VersionEntry is one milestone of a feature timeline
type VersionEntry struct {
	Version     string `json:"version"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// Feature is a concrete capability inferred from a repository
type Feature struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Files       []string       `json:"files"`
	Versions    []VersionEntry `json:"versions"`
}

// FileChange is one feature-relevant file touched by a commit
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"` // added, modified, removed, renamed
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// CommitEvolution explains one commit in the context of a feature
type CommitEvolution struct {
	SHA              string       `json:"sha"`
	Date             string       `json:"date"`
	Message          string       `json:"message"`
	Author           string       `json:"author"`
	FilesChanged     []FileChange `json:"files_changed"`
	TotalAdditions   int          `json:"total_additions"`
	TotalDeletions   int          `json:"total_deletions"`
	EvolutionSummary string       `json:"evolution_summary"`
}
