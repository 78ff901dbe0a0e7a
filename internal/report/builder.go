package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xArmad/reposter/internal/types"
)

// Builder renders repost activity reports
type Builder struct {
	outDir   string
	maxJobs  int
	template *template.Template
}

// New creates a new report builder writing into outDir
func New(outDir string, maxJobs int) (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		outDir:   outDir,
		maxJobs:  maxJobs,
		template: tmpl,
	}, nil
}

// Report represents a compiled activity report
type Report struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	FilePath  string
	JobCount  int
	Failed    int
	CreatedAt time.Time
}

// ReportData is the template data structure
type ReportData struct {
	Title string
	Date  string
	Jobs  []JobData
	Stats StatsData
}

// JobData represents one repost job in the report template
type JobData struct {
	MediaID   string
	Source    string
	Caption   string
	CreatedAt string
	Targets   []TargetData
}

// TargetData represents a per-target outcome row
type TargetData struct {
	Target   string
	Status   string
	Reason   string
	Attempts int
}

// StatsData contains report statistics
type StatsData struct {
	TotalJobs      int
	TotalSucceeded int
	TotalFailed    int
}

// Build renders a report for the given jobs and writes it to disk
func (b *Builder) Build(jobs []types.RepostJob) (*Report, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no repost jobs to report on")
	}

	// Newest first
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if len(jobs) > b.maxJobs {
		jobs = jobs[:b.maxJobs]
	}

	now := time.Now()
	data := ReportData{
		Title: "Repost Activity",
		Date:  now.Format("Monday, January 2"),
		Jobs:  make([]JobData, len(jobs)),
	}

	failed := 0
	for i, j := range jobs {
		jd := JobData{
			MediaID:   j.Post.MediaID,
			Source:    j.Post.AccountID,
			Caption:   truncate(j.Caption(), 140),
			CreatedAt: j.CreatedAt.Format("Jan 2 15:04"),
			Targets:   make([]TargetData, len(j.Results)),
		}
		for k, r := range j.Results {
			jd.Targets[k] = TargetData{
				Target:   r.Target,
				Status:   string(r.Status),
				Reason:   r.Reason,
				Attempts: r.Attempts,
			}
		}
		data.Jobs[i] = jd
		data.Stats.TotalSucceeded += j.Succeeded()
		failed += j.Failed()
	}
	data.Stats.TotalJobs = len(jobs)
	data.Stats.TotalFailed = failed

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	if err := os.MkdirAll(b.outDir, 0755); err != nil {
		return nil, err
	}

	// Dashes instead of colons for filesystem compatibility
	name := "report-" + now.Format("2006-01-02T15-04-05") + ".html"
	path := filepath.Join(b.outDir, name)
	if err := os.WriteFile(path, htmlBuf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	return &Report{
		Subject:   fmt.Sprintf("Repost Activity - %s", now.Format("Jan 2")),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		FilePath:  path,
		JobCount:  len(jobs),
		Failed:    failed,
		CreatedAt: now,
	}, nil
}

// Latest returns the path of the most recent report in outDir
func Latest(outDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(outDir, "report-*.html"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no reports found in %s", outDir)
	}

	// Timestamped names sort chronologically
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func buildPlainText(data ReportData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s\n%s\n\n", data.Title, data.Date))

	for i, j := range data.Jobs {
		buf.WriteString(fmt.Sprintf("%d. media %s from @%s (%s)\n", i+1, j.MediaID, j.Source, j.CreatedAt))
		for _, t := range j.Targets {
			if t.Reason != "" {
				buf.WriteString(fmt.Sprintf("   -> @%s: %s (%s)\n", t.Target, t.Status, t.Reason))
			} else {
				buf.WriteString(fmt.Sprintf("   -> @%s: %s\n", t.Target, t.Status))
			}
		}
		buf.WriteString("\n")
	}

	buf.WriteString(fmt.Sprintf("%d job(s), %d target(s) succeeded, %d failed\n",
		data.Stats.TotalJobs, data.Stats.TotalSucceeded, data.Stats.TotalFailed))

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #d6366c; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .job { border-bottom: 1px solid #eee; padding: 15px 0; }
        .job:last-child { border-bottom: none; }
        .media { font-weight: bold; color: #333; }
        .source { color: #666; }
        .caption { margin: 8px 0; line-height: 1.4; color: #444; font-style: italic; }
        .target { margin: 3px 0 3px 12px; font-size: 14px; }
        .succeeded { color: #2e7d32; }
        .failed { color: #c62828; }
        .reason { color: #999; font-size: 13px; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}</div>

        {{range .Jobs}}
        <div class="job">
            <div class="media">{{.MediaID}} <span class="source">from @{{.Source}} · {{.CreatedAt}}</span></div>
            {{if .Caption}}<div class="caption">{{.Caption}}</div>{{end}}
            {{range .Targets}}
            <div class="target {{.Status}}">@{{.Target}} · {{.Status}}{{if .Reason}} <span class="reason">{{.Reason}} ({{.Attempts}} attempt(s))</span>{{end}}</div>
            {{end}}
        </div>
        {{end}}

        <div class="footer">
            {{.Stats.TotalJobs}} job(s) · {{.Stats.TotalSucceeded}} succeeded · {{.Stats.TotalFailed}} failed · Generated by reposter
        </div>
    </div>
</body>
</html>`
