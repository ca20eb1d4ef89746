package confessions

import "strings"

// Department is an uppercase program code from the closed department set.
type Department string

// Departments grouped by school, in display order.
var schoolDepartments = map[string][]Department{
	"Arts":        {"CD", "FA", "CDV", "ECO", "MS", "ENGMCJ", "EM", "YS"},
	"Education":   {"TESOL", "TCSOL", "MATHED", "CIVTED", "ITED"},
	"Engineering": {"ARCH", "HC", "AI", "CHE", "CE", "MINE", "CSE", "BIT", "CS", "CYBER", "EEE", "GEOM", "ME"},
	"Law":         {"LAW"},
	"Management":  {"BBIS", "BBA"},
	"Science":     {"BT", "DS", "CM", "PHARM", "AP"},
}

var knownDepartments = func() map[Department]struct{} {
	known := make(map[Department]struct{})
	for _, departments := range schoolDepartments {
		for _, department := range departments {
			known[department] = struct{}{}
		}
	}
	return known
}()

// ParseDepartment uppercases the input and checks it against the department set.
func ParseDepartment(rawInput string) (Department, error) {
	candidate := Department(strings.ToUpper(strings.TrimSpace(rawInput)))
	if _, ok := knownDepartments[candidate]; !ok {
		return "", ErrInvalidDepartment
	}
	return candidate, nil
}

// String returns the department code.
func (department Department) String() string {
	return string(department)
}
