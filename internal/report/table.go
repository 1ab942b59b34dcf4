package report

import (
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"saltmigrate/internal/runlog"
)

// RunsTable renders recorded runs as a compact table, newest first as
// delivered by the store.
func RunsTable(w io.Writer, runs []*runlog.Run) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Extension", "Mode", "Started", "Duration", "Renames", "Conflicts", "Files", "Status"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	for _, run := range runs {
		status := "ok"
		if !run.Succeeded() {
			status = "failed"
		}
		table.Append([]string{
			shortID(run.ID),
			run.Extension,
			string(run.Mode),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Duration().Round(time.Millisecond).String(),
			strconv.Itoa(run.Renames),
			strconv.Itoa(run.Conflicts),
			strconv.Itoa(run.FilesChanged),
			status,
		})
	}

	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
