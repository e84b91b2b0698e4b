package ticketstatus

import "strings"

// Status is a closed set of kitchen ticket states. Tickets enter as New and
// leave the boards as Bumped or Voided; Recalled reopens a bumped ticket.
type Status string

const (
	New        Status = "new"
	InProgress Status = "in_progress"
	Bumped     Status = "bumped"
	Recalled   Status = "recalled"
	Voided     Status = "voided"
)

var All = []Status{New, InProgress, Bumped, Recalled, Voided}

func (s Status) Code() string {
	return string(s)
}

func (s Status) Label() string {
	parts := strings.Split(string(s), "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

// Active reports whether a ticket in this status counts against its
// station's load.
func (s Status) Active() bool {
	return s == New || s == InProgress || s == Recalled
}

// Terminal reports whether the status ends the ticket's lifecycle. Bumped is
// terminal unless the ticket is recalled.
func (s Status) Terminal() bool {
	return s == Bumped || s == Voided
}

func (s Status) Valid() bool {
	for _, known := range All {
		if s == known {
			return true
		}
	}
	return false
}

// ByCode returns the status for a given code, or nil if not found
func ByCode(code string) *Status {
	for _, s := range All {
		if s.Code() == code {
			return &s
		}
	}
	return nil
}
