package validation

import (
	"sort"
	"strings"
)

// Message is the top-level message of every validation failure response
const Message = "The given data was invalid."

// Errors maps a field name to its failure messages
type Errors map[string][]string

// Add appends msg to field, skipping duplicates
func (e Errors) Add(field, msg string) {
	for _, existing := range e[field] {
		if existing == msg {
			return
		}
	}
	e[field] = append(e[field], msg)
}

// Merge copies every message of other into e
func (e Errors) Merge(other Errors) {
	for field, msgs := range other {
		for _, msg := range msgs {
			e.Add(field, msg)
		}
	}
}

// HasErrors reports whether any field failed
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Has reports whether field failed
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Fields returns the failing field names, sorted
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (e Errors) Error() string {
	if len(e) == 0 {
		return Message
	}
	return Message + " (" + strings.Join(e.Fields(), ", ") + ")"
}

// Taken reports field as already used by another record
func Taken(field string) Errors {
	return Errors{field: {msgTaken(field)}}
}

// Err returns e as an error, or nil when nothing failed
func (e Errors) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}
