package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redscout/internal/types"
	"redscout/internal/usage"
)

const runLogName = "run_log.txt"

// RunLogEntry is one append-only record per completed run.
type RunLogEntry struct {
	Timestamp     time.Time
	SummaryPath   string
	ReportPath    string
	RedditCalls   int
	LLMCalls      int
	PostsAnalyzed int
	ConfigLine    string
	InputTokens   int64
	OutputTokens  int64
	Cost          usage.Cost
}

// RunArtifacts holds the paths written for one run.
type RunArtifacts struct {
	SummaryPath string
	ReportPath  string
	LogPath     string
}

// Persister writes the per-run artifacts: the enriched batch as pretty-
// printed JSON, the narrative as markdown, and one appended block in the
// cumulative run log.
type Persister struct {
	dir string
}

// New creates a Persister rooted at dir.
func New(dir string) *Persister {
	return &Persister{dir: dir}
}

// SaveRun writes all three artifacts. File names embed the UTC run
// timestamp so a run never overwrites a prior run's output. Nothing is
// written if any step fails partway except files already flushed.
func (p *Persister) SaveRun(batch []types.EnrichedPost, narrative string, entry RunLogEntry) (*RunArtifacts, error) {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	runID := entry.Timestamp.UTC().Format("20060102T150405Z")

	// A nil batch must still serialize as an array, not "null".
	if batch == nil {
		batch = []types.EnrichedPost{}
	}

	summaryPath := filepath.Join(p.dir, "summary_"+runID+".json")
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	if err := os.WriteFile(summaryPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}

	reportPath := filepath.Join(p.dir, "report_"+runID+".md")
	if err := os.WriteFile(reportPath, []byte(narrative), 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	entry.SummaryPath = summaryPath
	entry.ReportPath = reportPath

	logPath := filepath.Join(p.dir, runLogName)
	if err := appendRunLog(logPath, entry); err != nil {
		return nil, fmt.Errorf("failed to append run log: %w", err)
	}

	return &RunArtifacts{
		SummaryPath: summaryPath,
		ReportPath:  reportPath,
		LogPath:     logPath,
	}, nil
}

// appendRunLog appends one human-readable key: value block terminated by a
// "---" delimiter. The log is never truncated or rotated.
func appendRunLog(path string, entry RunLogEntry) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run: %s\n", entry.Timestamp.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Summary file: %s\n", entry.SummaryPath))
	sb.WriteString(fmt.Sprintf("Report file: %s\n", entry.ReportPath))
	sb.WriteString(fmt.Sprintf("Reddit API calls: %d\n", entry.RedditCalls))
	sb.WriteString(fmt.Sprintf("LLM calls: %d\n", entry.LLMCalls))
	sb.WriteString(fmt.Sprintf("Posts analyzed: %d\n", entry.PostsAnalyzed))
	sb.WriteString(fmt.Sprintf("Config: %s\n", entry.ConfigLine))
	sb.WriteString(fmt.Sprintf("Input tokens: %d\n", entry.InputTokens))
	sb.WriteString(fmt.Sprintf("Output tokens: %d\n", entry.OutputTokens))
	sb.WriteString(fmt.Sprintf("Input cost: $%.4f\n", entry.Cost.Input))
	sb.WriteString(fmt.Sprintf("Output cost: $%.4f\n", entry.Cost.Output))
	sb.WriteString(fmt.Sprintf("Total cost: $%.4f\n", entry.Cost.Total))
	sb.WriteString("---\n")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(sb.String())
	return err
}
