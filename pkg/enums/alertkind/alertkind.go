package alertkind

// Type distinguishes tickets already past their cook-time target from
// tickets approaching it.
type Type string

const (
	Overdue Type = "overdue"
	Warning Type = "warning"
)

// Severity orders alerts on the dashboard. Rank gives the sort key:
// critical first, informational last.
type Severity string

const (
	Critical Severity = "critical"
	Warn     Severity = "warning"
	Info     Severity = "info"
)

var Severities = []Severity{Critical, Warn, Info}

func (s Severity) Code() string {
	return string(s)
}

func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 0
	case Warn:
		return 1
	default:
		return 2
	}
}
