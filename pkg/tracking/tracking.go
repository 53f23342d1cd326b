// Package tracking builds the human-shareable codes reporters use to
// look up their submissions.
package tracking

import (
	"fmt"
	"regexp"
	"time"
)

// SequenceOffset keeps the numeric suffix at four digits or more so codes
// read uniformly (the first code of a day ends in 1001, not 1).
const SequenceOffset = 1000

var codePattern = regexp.MustCompile(`^\d{6}\d+$`)

// Format renders a public tracking code from the submission date and an
// already-reserved sequence number: DDMMYY followed by sequence+offset.
// Uniqueness comes from the caller reserving the sequence atomically.
func Format(date time.Time, sequence int64) string {
	return fmt.Sprintf("%s%d", date.Format("020106"), sequence+SequenceOffset)
}

// Valid reports whether the value has the shape of a tracking code.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}
