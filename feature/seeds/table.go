package seeds

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// RenderTable prints the seeds as aligned columns: name, size, age.
func RenderTable(w io.Writer, seeds []Seed) {
	if len(seeds) == 0 {
		return
	}

	nameWidth, sizeWidth := 0, 0
	sizes := make([]string, len(seeds))
	for i, seed := range seeds {
		sizes[i] = humanize.Bytes(uint64(seed.Size))
		nameWidth = max(nameWidth, len(seed.Name))
		sizeWidth = max(sizeWidth, len(sizes[i]))
	}

	for i, seed := range seeds {
		fmt.Fprintf(w, "%s  %s  %s\n",
			pad(seed.Name, nameWidth),
			pad(sizes[i], sizeWidth),
			humanize.Time(seed.LastModified),
		)
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
