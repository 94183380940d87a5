// Package view decides what the operator sees from a snapshot of the other
// components. Nothing here mutates state or calls the network.
package view

import (
	"fmt"
	"strings"

	"ragconsole/internal/notice"
	"ragconsole/internal/remote"
)

type Mode string

const (
	ModeStatistics Mode = "statistics"
	ModeDocuments  Mode = "documents"
)

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStatistics:
		return ModeStatistics, nil
	case ModeDocuments:
		return ModeDocuments, nil
	}
	return "", fmt.Errorf("unknown view mode %q (use %s or %s)", s, ModeStatistics, ModeDocuments)
}

type Screen string

const (
	ScreenLogin   Screen = "login"
	ScreenConsole Screen = "console"
)

type Panel string

const (
	PanelHidden     Panel = "hidden"
	PanelEmpty      Panel = "empty"
	PanelStatistics Panel = "statistics"
	PanelLoading    Panel = "loading"
	PanelDocuments  Panel = "documents"
)

type Results string

const (
	ResultsNone    Results = "none"
	ResultsPending Results = "pending"
	ResultsShown   Results = "shown"
)

type Input struct {
	Authenticated   bool
	Mode            Mode
	Stats           *remote.Stats
	Documents       []remote.Document
	DocumentsLoaded bool
	QueryPending    bool
	QueryResult     *remote.QueryResult
	Notice          *notice.Notification
}

type Row struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Chunks    int    `json:"chunks"`
	Size      string `json:"size"`
	Method    string `json:"method,omitempty"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type Summary struct {
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Size      string `json:"size"`
}

type View struct {
	Screen  Screen   `json:"screen"`
	Mode    Mode     `json:"mode"`
	Catalog Panel    `json:"catalog"`
	Summary *Summary `json:"summary,omitempty"`
	Rows    []Row    `json:"rows,omitempty"`
	Results Results  `json:"results"`
	Notice  string   `json:"notice,omitempty"`
}

func Derive(in Input) View {
	mode := in.Mode
	if mode == "" {
		mode = ModeStatistics
	}

	v := View{Screen: ScreenLogin, Mode: mode, Catalog: PanelHidden, Results: ResultsNone}
	if in.Notice != nil {
		v.Notice = in.Notice.Text
	}
	if !in.Authenticated {
		return v
	}
	v.Screen = ScreenConsole

	switch {
	case in.QueryPending:
		v.Results = ResultsPending
	case in.QueryResult != nil:
		v.Results = ResultsShown
	}

	if in.Stats == nil || in.Stats.DocumentCount == 0 {
		v.Catalog = PanelEmpty
		return v
	}

	v.Summary = &Summary{
		Documents: in.Stats.DocumentCount,
		Chunks:    in.Stats.TotalChunks,
		Size:      fmt.Sprintf("%.2f MB", in.Stats.TotalSizeMB),
	}

	switch {
	case mode == ModeStatistics:
		v.Catalog = PanelStatistics
	case !in.DocumentsLoaded:
		v.Catalog = PanelLoading
	default:
		v.Catalog = PanelDocuments
		v.Rows = make([]Row, 0, len(in.Documents))
		for _, d := range in.Documents {
			v.Rows = append(v.Rows, row(d))
		}
	}
	return v
}

func row(d remote.Document) Row {
	var details []string
	if d.PageCount != nil && *d.PageCount > 0 {
		details = append(details, fmt.Sprintf("%d pages", *d.PageCount))
	}
	if d.TableCount != nil && *d.TableCount > 0 {
		details = append(details, fmt.Sprintf("%d tables", *d.TableCount))
	}
	if d.ImageCount != nil && *d.ImageCount > 0 {
		details = append(details, fmt.Sprintf("%d images", *d.ImageCount))
	}

	title := d.Title
	if title == "" {
		title = d.Filename
	}

	return Row{
		ID:        d.ID,
		Title:     title,
		Chunks:    d.ChunkCount,
		Size:      FormatSize(d.SizeBytes),
		Method:    d.ProcessingMethod,
		Details:   strings.Join(details, " | "),
		CreatedAt: d.CreatedAt,
	}
}

// FormatSize renders a byte count as B, KB or MB with one decimal.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
