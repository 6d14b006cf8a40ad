package ui

import (
	"fmt"

	"github.com/desertthunder/albumdrop/internal/models"
)

const nameWidth = 28

func coverRow(name, bar string) string {
	return fmt.Sprintf("%s %-*s %s\n", styles.label.Render("cover"), nameWidth, truncate(name, nameWidth), bar)
}

func itemRow(i int, item models.UploadItem, bar string) string {
	label := styles.label.Render(fmt.Sprintf("track %d", i+1))
	status := styles.Status(item.Status).Render(item.Status.String())
	return fmt.Sprintf("%s %-*s %s %s\n", label, nameWidth, truncate(item.File.Name, nameWidth), bar, status)
}

func resultRow(i int, item models.UploadItem) string {
	status := styles.Status(item.Status).Render(fmt.Sprintf("%-9s", item.Status))
	line := fmt.Sprintf("  %2d. %s %s", i+1, status, item.File.Name)
	if item.Error != "" {
		line += " " + styles.err.Render(item.Error)
	}
	return line + "\n"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
