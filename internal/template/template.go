package template

import (
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"
)

// add adds two integers and returns the result.
// helper function for text templates
func add(a, b int) int {
	return a + b
}

// ordinalDate returns a string with the ordinal number of the day
// helper function for text templates
func ordinalDate(day int) string {
	suffix := "th"
	switch day {
	case 1, 21, 31:
		suffix = "st"
	case 2, 22:
		suffix = "nd"
	case 3, 23:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", day, suffix)
}

// formatDateTime formats a time.Time object into the specified string format.
// helper function for text templates
func formatDateTime(t time.Time) string {
	day := ordinalDate(t.Day())
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%s %s %d %d:%02d:%02d %s", day, t.Month(), t.Year(), hour, t.Minute(), t.Second(), t.Format("pm"))
}

// join renders the elements of a slice separated by sep.
func join(values interface{}, sep string) string {
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Slice {
		if values == nil {
			return ""
		}
		return fmt.Sprint(values)
	}
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(v.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}

// NewTemplate parses body as a text template with the report helpers available.
func NewTemplate(name, body string) (*template.Template, error) {
	return template.New(name).
		Funcs(template.FuncMap{
			"add":            add,
			"formatDateTime": formatDateTime,
			"join":           join,
			"upper":          strings.ToUpper,
		}).
		Parse(body)
}
