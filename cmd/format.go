package cmd

import (
	"fmt"
	"time"
)

func formatRelativeDate(t time.Time) string {
	return formatRelativeDateSince(t, time.Now())
}

func formatRelativeDateSince(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	return t.Local().Format("2006-01-02 15:04")
}
