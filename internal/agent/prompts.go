package agent

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/gittime/internal/models"
)

// Prompt budgets, in characters unless noted
const (
	readmeBudget         = 8000
	treePathBudget       = 500 // paths, not characters
	commitsBudget        = 6000
	releasesBudget       = 2000
	gatherPatchBudget    = 500
	promptPatchBudget    = 300
	evolutionCommitLimit = 40
)

const identifyFeaturesSystem = `You are an expert software architect performing a deep, granular analysis of a GitHub repository. Given the README, file tree, recent commits, and tags/releases, identify SPECIFIC, CONCRETE features, NOT broad categories.

CRITICAL: be SPECIFIC, not general.
- BAD (too broad): "Authentication", "API Endpoints", "Data Management"
- GOOD (specific): "OAuth2 Google Login", "JWT Token Refresh", "Paginated User Search API", "Drag-and-Drop File Upload", "Dark Mode Toggle", "WebSocket Live Notifications"

Rules:
1. Each feature must be a SINGLE, specific capability that a user or developer can point to and say "this is one concrete thing the software does".
2. Derive features from ACTUAL code: file names, function names, route paths, component names and commit messages are your clues.
3. Break broad areas into their individual sub-features. Instead of "User Management", list "User Registration with Email Verification", "Profile Avatar Upload", "Role-Based Access Control".
4. The UNION of all features must cover the ENTIRE project.
5. Give 8-25 features depending on project complexity. More features is better than fewer, as long as each one is genuinely distinct.
6. For each feature provide:
   - name: specific title (2-7 words), descriptive enough to stand alone
   - description: one paragraph explaining EXACTLY what it does, what technology or pattern it uses, and how a user interacts with it
   - files: list of key file paths relevant to that feature (up to 10)

Respond ONLY with a JSON array. Example:
[
  {
    "name": "Google OAuth2 Login",
    "description": "Allows users to sign in using their Google account via the OAuth2 flow. Uses the passport-google-oauth20 strategy, stores refresh tokens in the database, and redirects to the dashboard on success.",
    "files": ["src/auth/google.ts", "src/auth/passport.ts", "src/routes/auth.ts"]
  },
  {
    "name": "CSV Data Export",
    "description": "Generates downloadable CSV files from filtered dashboard data. Uses json2csv to transform query results and streams the file to the client with a Content-Disposition header.",
    "files": ["src/export/csv.ts", "src/routes/export.ts"]
  }
]
`

const versionTimelineSystem = `You are a release-notes analyst. Given a feature description, its key files, and a chronological list of commits/releases that touched those files, produce a LINEAR version timeline for this feature.

For each meaningful version milestone, provide:
  - version: the tag name, or a short commit SHA if no tag exists
  - date: ISO date (YYYY-MM-DD)
  - description: 1-2 sentence summary of what changed for THIS feature in that version

Return ONLY a JSON array sorted oldest → newest. Example:
[
  {"version": "v0.1.0", "date": "2023-01-15", "description": "Initial authentication flow with email/password."},
  {"version": "v0.2.0", "date": "2023-03-10", "description": "Added OAuth2 support for Google and GitHub."}
]
`

const evolutionSystem = `You are a senior code reviewer. You receive:
1. A feature's structured context: name, description, and key files.
2. A batch of commits (with diffs/patches) that touched those files.

For EACH commit, write a concise "evolution_summary" (2-4 sentences) that explains what changed in the code (referencing specific files), how this commit advanced the feature, and whether it was a new capability, bug fix, refactor or performance improvement.

Return ONLY a JSON array in the SAME order as the input commits. Example:
[
  {
    "sha": "abc1234",
    "evolution_summary": "Added the login form component in src/auth/Login.tsx ..."
  }
]
`

// buildDiscoveryPrompt renders the repository context for feature identification
func buildDiscoveryPrompt(rc *models.RepositoryContext) string {
	paths := rc.TreePaths
	if len(paths) > treePathBudget {
		paths = paths[:treePathBudget]
	}

	var sb strings.Builder
	sb.WriteString("## README\n")
	sb.WriteString(truncate(rc.Readme, readmeBudget))
	sb.WriteString("\n\n## File tree\n")
	sb.WriteString(strings.Join(paths, "\n"))
	sb.WriteString("\n\n## Recent commits (read these carefully for specific features)\n")
	sb.WriteString(truncate(rc.CommitsSummary, commitsBudget))
	sb.WriteString("\n\n## Releases / tags\n")
	sb.WriteString(truncate(rc.ReleasesSummary, releasesBudget))
	sb.WriteString("\n")
	return sb.String()
}

// buildTimelinePrompt renders one feature with its oldest-first commit lines
func buildTimelinePrompt(feature models.Feature, commitsText, releasesSummary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Feature: %s\n%s\n\n", feature.Name, feature.Description)
	fmt.Fprintf(&sb, "Key files: %s\n\n", strings.Join(feature.Files, ", "))
	sb.WriteString("## Commits touching these files (oldest → newest)\n")
	sb.WriteString(truncate(commitsText, commitsBudget))
	sb.WriteString("\n\n## Releases / tags\n")
	sb.WriteString(truncate(releasesSummary, releasesBudget))
	sb.WriteString("\n")
	return sb.String()
}

// buildEvolutionPrompt renders the feature context followed by one block per commit
func buildEvolutionPrompt(feature models.Feature, commits []models.CommitEvolution) string {
	blocks := make([]string, 0, len(commits))
	for _, c := range commits {
		var block strings.Builder
		fmt.Fprintf(&block, "### Commit %s  (%s)  by %s\n", c.SHA, c.Date, c.Author)
		fmt.Fprintf(&block, "Message: %s\n", c.Message)
		block.WriteString("Files:\n")

		files := make([]string, 0, len(c.FilesChanged))
		for _, f := range c.FilesChanged {
			files = append(files, fmt.Sprintf("  [%s] %s\n    %s", f.Status, f.Filename, truncate(f.Patch, promptPatchBudget)))
		}
		block.WriteString(strings.Join(files, "\n"))
		blocks = append(blocks, block.String())
	}

	var sb strings.Builder
	sb.WriteString("## Feature Context\n")
	fmt.Fprintf(&sb, "**Name:** %s\n", feature.Name)
	fmt.Fprintf(&sb, "**Description:** %s\n", feature.Description)
	fmt.Fprintf(&sb, "**Key files:** %s\n\n", strings.Join(feature.Files, ", "))
	sb.WriteString("## Commits (oldest → newest)\n\n")
	sb.WriteString(strings.Join(blocks, "\n\n"))
	return sb.String()
}
