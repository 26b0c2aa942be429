package core

import "fmt"

// FormatRetryMessage renders the wait hint shown to callers that hit a limit.
// It returns an empty string for decisions that were not limited.
func FormatRetryMessage(d Decision) string {
	if !d.Limited {
		return ""
	}

	secs := d.RetryAfterSeconds()
	if secs < 60 {
		return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before trying again.", secs)
	}

	minutes := (secs + 59) / 60
	plural := ""
	if minutes > 1 {
		plural = "s"
	}
	return fmt.Sprintf("Rate limit exceeded. Please wait %d minute%s before trying again.", minutes, plural)
}
