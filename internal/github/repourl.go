package github

import (
	"regexp"
	"strings"

	"github.com/rohankatakam/gittime/internal/errors"
)

var (
	shortRepoPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)$`)
	repoURLPattern   = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)
)

// ParseRepoURL extracts owner and name from "owner/repo" or any string
// containing github.com/<owner>/<repo>. A trailing ".git" is dropped.
func ParseRepoURL(ref string) (owner, name string, err error) {
	ref = strings.TrimRight(strings.TrimSpace(ref), "/")

	if m := shortRepoPattern.FindStringSubmatch(ref); m != nil {
		return m[1], m[2], nil
	}

	m := repoURLPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", "", errors.InvalidReferenceError("Invalid GitHub repository URL")
	}

	name = strings.TrimSuffix(m[2], ".git")
	if name == "" {
		return "", "", errors.InvalidReferenceError("Invalid GitHub repository URL")
	}
	return m[1], name, nil
}
