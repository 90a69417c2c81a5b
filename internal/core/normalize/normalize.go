// Package normalize converts submission answers (keyed by internal field id)
// into the key/value shape a destination expects: applying explicit field
// mappings, dropping empty values, and auto-detecting identity fields by
// label alias and email heuristics when no mapping is given.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"formpulse-relay/internal/core/domain"
)

// aliasTargets maps canonical identity targets to label substrings that
// count as a match. Product-inherited tables; matching is case-insensitive
// substring containment.
var aliasTargets = []struct {
	Target  string
	Aliases []string
}{
	{"firstname", []string{"first_name", "first", "fname", "name"}},
	{"lastname", []string{"last_name", "last", "lname", "surname"}},
	{"phone", []string{"phone", "phone_number", "tel", "mobile"}},
	{"company", []string{"company", "company_name", "organization"}},
	{"jobtitle", []string{"job_title", "title", "position", "role"}},
	{"website", []string{"website", "url", "site"}},
	{"address", []string{"address", "street"}},
	{"city", []string{"city"}},
	{"state", []string{"state", "province"}},
	{"zip", []string{"zip", "zipcode", "postal_code"}},
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Apply projects the event's answers through an explicit field mapping.
// A value is included only when a mapping entry exists with a non-empty
// target and the answer itself is non-empty; everything else is silently
// skipped, never sent as null.
func Apply(event *domain.SubmissionEvent, mapping map[string]string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, a := range event.Answers {
		target := mapping[a.FieldID]
		if target == "" || IsEmpty(a.Value) {
			continue
		}
		out[target] = a.Value
	}
	return out
}

// LabelData returns answers keyed by field label (falling back to field id),
// preserving only non-empty values. Used by notification-style destinations
// that render the full answer set.
func LabelData(event *domain.SubmissionEvent) map[string]interface{} {
	out := make(map[string]interface{}, len(event.Answers))
	for _, a := range event.Answers {
		if IsEmpty(a.Value) {
			continue
		}
		key := a.FieldLabel
		if key == "" {
			key = a.FieldID
		}
		out[key] = a.Value
	}
	return out
}

// MatchAlias resolves a field label to a canonical identity target
// (firstname, lastname, phone, ...). First matching table entry wins, so
// "first name" resolves to firstname before the bare "name" alias of the
// same table can claim it elsewhere.
func MatchAlias(label string) (string, bool) {
	lower := strings.ToLower(label)
	for _, t := range aliasTargets {
		for _, alias := range t.Aliases {
			if strings.Contains(lower, alias) {
				return t.Target, true
			}
		}
	}
	return "", false
}

// LooksLikeEmail reports whether the value parses as an email address.
func LooksLikeEmail(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return emailRegex.MatchString(s)
}

// ResolveEmail finds the submission's email: an answer explicitly mapped to
// "email", then a field whose label or id mentions email, then any value
// matching the email pattern. Returns false when none resolves; destinations
// that require an identity treat that as a hard configuration failure.
func ResolveEmail(event *domain.SubmissionEvent, mapping map[string]string) (string, bool) {
	for _, a := range event.Answers {
		if mapping[a.FieldID] == "email" && !IsEmpty(a.Value) {
			return Str(a.Value), true
		}
	}
	for _, a := range event.Answers {
		if IsEmpty(a.Value) {
			continue
		}
		if strings.Contains(strings.ToLower(a.FieldLabel), "email") ||
			strings.Contains(strings.ToLower(a.FieldID), "email") {
			return Str(a.Value), true
		}
	}
	for _, a := range event.Answers {
		if LooksLikeEmail(a.Value) {
			return Str(a.Value), true
		}
	}
	return "", false
}

// IsEmpty reports whether an answer value carries no content: nil, empty or
// blank string, or an empty slice.
func IsEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}

// Str renders any answer value as a string. Slices join with ", ".
func Str(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, Str(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}

// Num parses a numeric value, falling back to 0 on failure.
func Num(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Bool coerces a value by truthiness: false, 0, "", "false", "no", "0" and
// nil are false, everything else true.
func Bool(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", "false", "no", "0":
			return false
		}
		return true
	}
	return true
}

// StringList coerces array or scalar input to a string slice; multi-valued
// targets always receive an array.
func StringList(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, Str(item))
		}
		return out
	}
	return []string{Str(v)}
}

// ClampRating parses a rating and clamps it to [min, max].
func ClampRating(v interface{}, min, max int) int {
	n := int(Num(v))
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n
}

// timeLayouts are the accepted date/datetime input forms, most specific
// first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseTime parses an answer value as a timestamp.
func ParseTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	case float64:
		// Unix seconds.
		return time.Unix(int64(val), 0).UTC(), true
	}
	return time.Time{}, false
}

// DateOnly normalizes a value to YYYY-MM-DD, for destinations expecting a
// date without time.
func DateOnly(v interface{}) (string, bool) {
	ts, ok := ParseTime(v)
	if !ok {
		return "", false
	}
	return ts.UTC().Format("2006-01-02"), true
}

// DateTime normalizes a value to RFC 3339.
func DateTime(v interface{}) (string, bool) {
	ts, ok := ParseTime(v)
	if !ok {
		return "", false
	}
	return ts.UTC().Format(time.RFC3339), true
}
