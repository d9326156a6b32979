package worlds

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Row is one line of the world listing.
type Row struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
	// Size is the on-disk size in bytes, 0 when not downloaded.
	Size int64 `json:"size,omitempty"`
	// Checked says how long ago the repo's releases were fetched.
	Checked string `json:"checked,omitempty"`
}

var (
	goodStatus = color.New(color.FgGreen)
	warnStatus = color.New(color.FgYellow)
	badStatus  = color.New(color.FgRed)
)

func colorStatus(status string) string {
	switch strings.TrimRight(status, " ") {
	case StatusUpToDate, StatusManual:
		return goodStatus.Sprint(status)
	case StatusUpdateAvailable, StatusNotDownloaded, StatusNeverChecked, StatusNotDownloadedNever:
		return warnStatus.Sprint(status)
	case StatusUnknownVersion, StatusManualMissing, StatusOrphan:
		return badStatus.Sprint(status)
	}
	return status
}

// RenderTable prints rows as aligned columns. Padding happens before the
// status is colorized so the escape codes never upset the alignment. With
// long set, size and check age are appended.
func RenderTable(w io.Writer, rows []Row, long bool) {
	if len(rows) == 0 {
		return
	}

	nameWidth, versionWidth, statusWidth := 0, 0, 0
	for _, row := range rows {
		nameWidth = max(nameWidth, len(row.Name))
		versionWidth = max(versionWidth, len(row.Version))
		statusWidth = max(statusWidth, len(row.Status))
	}

	for _, row := range rows {
		status := row.Status
		if long {
			status = pad(status, statusWidth)
		}
		line := fmt.Sprintf("%s  %s  %s",
			pad(row.Name, nameWidth),
			pad(row.Version, versionWidth),
			colorStatus(status),
		)
		if long {
			size := ""
			if row.Size > 0 {
				size = humanize.Bytes(uint64(row.Size))
			}
			line += fmt.Sprintf("  %s  %s", pad(size, 10), row.Checked)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
