package agent

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/rohankatakam/gittime/internal/models"
)

const (
	maxFeatureFiles = 10
	releaseBodyLen  = 200
	noReleasesText  = "No releases or tags found."
)

// FeatureID derives the stable feature id: first 10 hex chars of md5(lower(name))
func FeatureID(name string) string {
	sum := md5.Sum([]byte(strings.ToLower(name)))
	return hex.EncodeToString(sum[:])[:10]
}

// NormalizeFeature fills a missing id from the name and never returns nil slices
func NormalizeFeature(f models.Feature) models.Feature {
	if f.ID == "" {
		f.ID = FeatureID(f.Name)
	}
	if f.Files == nil {
		f.Files = []string{}
	}
	if f.Versions == nil {
		f.Versions = []models.VersionEntry{}
	}
	return f
}

// extractJSON returns the JSON payload of a model response. When the text
// contains a fenced block, only the text between the first fence and the
// next one is kept, minus a language tag such as "json".
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	idx := strings.Index(response, "```")
	if idx == -1 {
		return response
	}

	body := response[idx+3:]
	end := strings.Index(body, "```")
	if end == -1 {
		// unterminated fence: leave the text for the decoder to reject
		return response
	}
	body = strings.TrimSpace(body[:end])

	if !startsJSON(body) {
		if i := strings.IndexAny(body, "[{"); i > 0 && isLanguageTag(body[:i]) {
			body = body[i:]
		}
	}
	return body
}

func startsJSON(s string) bool {
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// parseJSON decodes a model response into T after fence stripping
func parseJSON[T any](response string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(extractJSON(response)), &out); err != nil {
		return out, fmt.Errorf("invalid JSON in model response: %w", err)
	}
	return out, nil
}

// truncate keeps the first n characters of s
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// commitLine renders "<YYYY-MM-DD>  <sha7>  <first line>"
func commitLine(c models.Commit) string {
	return fmt.Sprintf("%s  %s  %s", c.Date.Format("2006-01-02"), shortSHA(c.SHA), firstLine(c.Message))
}

// CommitsSummary renders one line per commit, preserving input order
func CommitsSummary(commits []models.Commit) string {
	lines := make([]string, 0, len(commits))
	for _, c := range commits {
		lines = append(lines, commitLine(c))
	}
	return strings.Join(lines, "\n")
}

// ReleasesSummary renders releases, or tags when there are no releases.
// With neither it returns a fixed sentinel, never "".
func ReleasesSummary(releases []models.Release, tags []models.Tag) string {
	var lines []string

	switch {
	case len(releases) > 0:
		for _, r := range releases {
			name := r.TagName
			if name == "" {
				name = r.Name
			}
			lines = append(lines, fmt.Sprintf("%s  %s  %s", releaseDate(r), name, truncate(r.Body, releaseBodyLen)))
		}
	case len(tags) > 0:
		for _, t := range tags {
			lines = append(lines, fmt.Sprintf("tag: %s  sha: %s", t.Name, shortSHA(t.CommitSHA)))
		}
	}

	if len(lines) == 0 {
		return noReleasesText
	}
	return strings.Join(lines, "\n")
}

func releaseDate(r models.Release) string {
	if r.PublishedAt != nil {
		return r.PublishedAt.Format("2006-01-02")
	}
	if r.CreatedAt.IsZero() {
		return ""
	}
	return r.CreatedAt.Format("2006-01-02")
}

// isRelevantFile reports whether filename contains any feature file as a
// substring. Partial paths match on purpose, so "auth/login" matches
// "src/auth/login.ts".
func isRelevantFile(filename string, featureFiles []string) bool {
	for _, ff := range featureFiles {
		if strings.Contains(filename, ff) {
			return true
		}
	}
	return false
}

// touchesFeature reports whether any changed file is relevant to the feature
func touchesFeature(detail *models.CommitDetail, featureFiles []string) bool {
	for _, f := range detail.Files {
		if isRelevantFile(f.Filename, featureFiles) {
			return true
		}
	}
	return false
}

func reversed[T any](s []T) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
