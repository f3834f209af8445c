package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"podigest/internal/episodes"
	"podigest/internal/feeds"
	"podigest/internal/lifecycle"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func statsLines(stats episodes.Stats, colorize bool) []string {
	lines := renderSectionHeader("Episodes", colorize)
	lines = append(lines,
		renderStatusLine("Total", statusInfo, fmt.Sprint(stats.Total), colorize),
		renderStatusLine("Published", statusOK, fmt.Sprint(stats.Published), colorize),
		renderStatusLine("Pending", countKind(stats.Pending, statusInfo), fmt.Sprint(stats.Pending), colorize),
		renderStatusLine("Failing", countKind(stats.Failing, statusWarn), fmt.Sprint(stats.Failing), colorize),
		renderStatusLine("Claimed", statusInfo, fmt.Sprint(stats.Claimed), colorize),
	)
	if stats.Exhausted > 0 {
		lines = append(lines, renderStatusLine("Attempts capped", statusError,
			fmt.Sprintf("%d (reset with `podigest episodes retry`)", stats.Exhausted), colorize))
	}
	return lines
}

func reportLines(report feeds.Report, colorize bool) []string {
	lines := renderSectionHeader("Feed fetch", colorize)
	lines = append(lines,
		renderStatusLine("Feeds", statusInfo, fmt.Sprint(report.Feeds), colorize),
		renderStatusLine("Feed errors", countKind(report.FeedErrors, statusWarn), fmt.Sprint(report.FeedErrors), colorize),
		renderStatusLine("Entries", statusInfo, fmt.Sprint(report.Entries), colorize),
		renderStatusLine("Without audio", statusInfo, fmt.Sprint(report.NoAudio), colorize),
		renderStatusLine("New episodes", statusOK, fmt.Sprint(report.New), colorize),
	)
	return lines
}

func outcomeLines(outcome lifecycle.Outcome, colorize bool) []string {
	lines := renderSectionHeader(fmt.Sprintf("Episode %d", outcome.EpisodeID), colorize)
	lines = append(lines, renderStatusLine("Title", statusInfo, outcome.Title, colorize))
	if outcome.Published() {
		lines = append(lines, renderStatusLine("State", statusOK, string(outcome.State), colorize))
	} else {
		lines = append(lines, renderStatusLine("State", statusError, fmt.Sprintf("%s (%s)", outcome.State, outcome.Reason), colorize))
		if outcome.Err != nil {
			lines = append(lines, renderStatusLine("Error", statusError, outcome.Err.Error(), colorize))
		}
	}
	lines = append(lines, renderStatusLine("Elapsed", statusInfo, outcome.Elapsed.Round(time.Second).String(), colorize))
	return lines
}

func countKind(n int, nonZero statusKind) statusKind {
	if n == 0 {
		return statusOK
	}
	return nonZero
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
