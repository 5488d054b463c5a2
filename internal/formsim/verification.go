package formsim

import "fmt"

// verifyResults checks the service accounted for every accepted form.
func verifyResults(stats *Stats) error {
	if stats.Submitted == 0 {
		return fmt.Errorf("nothing was submitted")
	}
	// Other writers may add applications concurrently, never remove them.
	if stats.StageTotal < stats.Created {
		return fmt.Errorf("service counts %d new applications, %d were accepted", stats.StageTotal, stats.Created)
	}
	return nil
}

// intendedDuplicates counts payloads generated with a reused email. An
// original and its copy submitted at the same moment may both go unflagged,
// so the flagged count is only compared loosely.
func intendedDuplicates(payloads []Payload) int {
	n := 0
	for _, p := range payloads {
		if p.Duplicate {
			n++
		}
	}
	return n
}
