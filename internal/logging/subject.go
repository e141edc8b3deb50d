package logging

import "strings"

// FormatSubject builds the job/item/stage subject string used in console output.
// Job identifiers are shortened to their first eight characters.
func FormatSubject(jobID, itemID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	itemID = strings.TrimSpace(itemID)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 2)
	if jobID != "" {
		parts = append(parts, "Job "+shortJobID(jobID))
	}
	switch {
	case itemID != "" && stage != "":
		parts = append(parts, "Item "+itemID+" ("+stage+")")
	case itemID != "":
		parts = append(parts, "Item "+itemID)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " > ")
}

func shortJobID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
