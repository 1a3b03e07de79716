package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"arkline/internal/ipc"
	"arkline/internal/records"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorizeStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	var color string
	switch records.Status(status) {
	case records.StatusComplete:
		color = ansiGreen
	case records.StatusError:
		color = ansiRed
	case records.StatusAwaitingHumanInput, records.StatusAwaitingHumanValidation:
		color = ansiYellow
	case records.StatusQueued, records.StatusInProgress:
		color = ansiBlue
	default:
		return status
	}
	return color + status + ansiReset
}

// progressSummary condenses a record's steps into "n/m complete" plus the
// status of the step currently deciding the record's fate.
func progressSummary(steps []ipc.StepView) string {
	complete := 0
	current := ""
	for _, step := range steps {
		if records.Status(step.Status) == records.StatusComplete {
			complete++
			continue
		}
		if current == "" {
			current = fmt.Sprintf("%s: %s", step.Type, step.Status)
		}
	}
	summary := fmt.Sprintf("%d/%d complete", complete, len(steps))
	if current != "" {
		summary += ", " + current
	}
	return summary
}

func renderRecordList(out io.Writer, views []ipc.RecordView) {
	if len(views) == 0 {
		fmt.Fprintln(out, "No records")
		return
	}
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, []string{
			strconv.FormatInt(view.ID, 10),
			view.Title,
			view.NOID,
			progressSummary(view.Steps),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Title", "NOID", "Progress"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
}

func renderRecordDetail(out io.Writer, resp *ipc.DescribeResponse) {
	colorize := shouldColorize(out)
	record := resp.Record

	fmt.Fprintf(out, "Record %d: %s\n", record.ID, record.Title)
	if record.NOID != "" {
		fmt.Fprintf(out, "  NOID:       %s\n", record.NOID)
	}
	if record.Identifier != "" {
		fmt.Fprintf(out, "  Identifier: %s\n", record.Identifier)
	}
	fmt.Fprintf(out, "  Created:    %s\n", record.CreatedAt)

	rows := make([][]string, 0, len(record.Steps))
	for _, step := range record.Steps {
		flags := step.Mode
		if step.HumanValidation {
			flags += ", validated"
		}
		rows = append(rows, []string{
			strconv.Itoa(step.Order),
			step.Type,
			flags,
			colorizeStatus(step.Status, colorize),
			step.Log,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Step", "Mode", "Status", "Log"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))

	if len(resp.Pages) > 0 {
		pageRows := make([][]string, 0, len(resp.Pages))
		for _, page := range resp.Pages {
			pageRows = append(pageRows, []string{
				strconv.Itoa(page.Order),
				page.NOID,
				page.Identifier,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Page", "NOID", "Identifier"},
			pageRows,
			[]columnAlignment{alignRight, alignLeft, alignLeft},
		))
	}
}

func renderStatus(out io.Writer, status *ipc.StatusResponse) {
	running := "running"
	if !status.Running {
		running = "stopped"
	}
	fmt.Fprintf(out, "Daemon:  %s (pid %d)\n", running, status.PID)
	fmt.Fprintf(out, "Store:   %s\n", status.DBPath)
	fmt.Fprintf(out, "Records: %d\n", status.TotalRecords)

	if len(status.StepStats) == 0 {
		return
	}
	rows := make([][]string, 0, len(status.StepStats))
	for _, name := range statOrder {
		count, ok := status.StepStats[name]
		if !ok {
			continue
		}
		rows = append(rows, []string{name, strconv.Itoa(count)})
	}
	for name, count := range status.StepStats {
		if !knownStat(name) {
			rows = append(rows, []string{name, strconv.Itoa(count)})
		}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Step status", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}

var statOrder = []string{
	string(records.StatusPending),
	string(records.StatusQueued),
	string(records.StatusInProgress),
	string(records.StatusAwaitingHumanInput),
	string(records.StatusAwaitingHumanValidation),
	string(records.StatusComplete),
	string(records.StatusError),
}

func knownStat(name string) bool {
	for _, known := range statOrder {
		if strings.EqualFold(known, name) {
			return true
		}
	}
	return false
}
