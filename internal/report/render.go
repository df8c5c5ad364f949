package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/servebench/servebench/internal/common/util"
)

// SummaryFileName is the session's plain-text analysis artifact.
const SummaryFileName = "analysis_summary.txt"

// Render formats the report as a tab-aligned table, one row per concurrency
// level. Absent cells render as "-".
func (r *Report) Render() string {
	b := util.NewTabbedStringBuilder(1, 1, 2, ' ', 0)
	header := []any{"concurrency"}
	for _, field := range r.Fields {
		header = append(header, field.Key())
	}
	b.WriteRow(header...)
	for _, row := range r.Rows {
		columns := []any{row.Concurrency}
		for _, field := range r.Fields {
			if value, ok := row.Metrics[field.Key()]; ok {
				columns = append(columns, formatCell(value))
			} else {
				columns = append(columns, "-")
			}
		}
		b.WriteRow(columns...)
	}
	return b.String()
}

// RenderAnalysis formats the goodput analysis as plain text: the best raw
// throughput point, the best goodput point per tier, and the goodput of
// every swept concurrency under every tier.
func RenderAnalysis(analysis *Analysis) string {
	sb := &strings.Builder{}
	if analysis.BestThroughput != nil {
		fmt.Fprintf(sb, "Best throughput: %.2f req/s at concurrency %d\n",
			analysis.BestThroughput.Throughput, analysis.BestThroughput.Concurrency)
	} else {
		sb.WriteString("Best throughput: no data\n")
	}

	sb.WriteString("\nBest goodput per service tier:\n")
	tiers := util.NewTabbedStringBuilder(1, 1, 2, ' ', 0)
	tiers.WriteRow("tier", "ttft(ms)", "tpot(ms)", "goodput(req/s)", "token goodput(tok/s)", "at concurrency")
	for _, tier := range analysis.Tiers {
		if tier.Best == nil {
			tiers.WriteRow(tier.Tier.Name, tier.Tier.TtftMs, tier.Tier.TpotMs, "0.00", "0.00", "-")
			continue
		}
		tiers.WriteRow(
			tier.Tier.Name,
			tier.Tier.TtftMs,
			tier.Tier.TpotMs,
			formatCell(tier.Best.RequestGoodput),
			formatCell(tier.Best.TokenGoodput),
			tier.Best.Concurrency,
		)
	}
	sb.WriteString(tiers.String())

	if len(analysis.Tiers) > 0 && len(analysis.Tiers[0].Points) > 0 {
		sb.WriteString("\nGoodput by concurrency (req/s):\n")
		matrix := util.NewTabbedStringBuilder(1, 1, 2, ' ', 0)
		header := []any{"concurrency"}
		for _, tier := range analysis.Tiers {
			header = append(header, tier.Tier.Name)
		}
		matrix.WriteRow(header...)
		for i, point := range analysis.Tiers[0].Points {
			columns := []any{point.Concurrency}
			for _, tier := range analysis.Tiers {
				columns = append(columns, formatCell(tier.Points[i].RequestGoodput))
			}
			matrix.WriteRow(columns...)
		}
		sb.WriteString(matrix.String())
	}
	return sb.String()
}

// WriteSummary renders the report and its analysis into
// <outputRoot>/analysis_summary.txt, returning the file's path.
func WriteSummary(outputRoot string, report *Report, analysis *Analysis) (string, error) {
	path := filepath.Join(outputRoot, SummaryFileName)
	content := report.Render() + "\n" + RenderAnalysis(analysis)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	return path, nil
}

func formatCell(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}
