package stationtype

import "strings"

// Type classifies a preparation point. Routing fallbacks treat Kitchen as
// the catch-all destination.
type Type string

const (
	Kitchen Type = "kitchen"
	Bar     Type = "bar"
	Grill   Type = "grill"
	Fryer   Type = "fryer"
	Salad   Type = "salad"
	Dessert Type = "dessert"
	Expo    Type = "expo"
	Prep    Type = "prep"
)

var All = []Type{Kitchen, Bar, Grill, Fryer, Salad, Dessert, Expo, Prep}

func (t Type) Code() string {
	return string(t)
}

func (t Type) Label() string {
	if len(t) == 0 {
		return ""
	}
	return strings.ToUpper(string(t)[:1]) + string(t)[1:]
}

func (t Type) Valid() bool {
	for _, known := range All {
		if t == known {
			return true
		}
	}
	return false
}

// ByCode returns the station type for a given code, or nil if not found
func ByCode(code string) *Type {
	for _, t := range All {
		if t.Code() == code {
			return &t
		}
	}
	return nil
}
