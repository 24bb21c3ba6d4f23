package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	playgroundvalidator "github.com/go-playground/validator/v10"
)

// Options tune a single validation run.
type Options struct {
	// NoDefaults skips default injection. Set for updates so absent keys stay absent.
	NoDefaults bool
	// AbortEarly stops at the first failing key.
	AbortEarly bool
	// AllowUnknown keeps keys the schema does not declare instead of rejecting them.
	AllowUnknown bool
	// SafeFields is the whitelist kept from an echoed payload that carries credentials.
	SafeFields []string
}

// Detail is one failed constraint.
type Detail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
}

// ValidationFailure is the library independent shape of a failed validation.
type ValidationFailure struct {
	Details []Detail `json:"details"`
	// Original is the payload as received, redacted when it carried credentials.
	Original map[string]interface{} `json:"_object"`
}

func (f *ValidationFailure) Error() string {
	return f.Description()
}

// MarshalJSON is what the error envelope echoes back: details plus the redacted original.
func (f *ValidationFailure) MarshalJSON() ([]byte, error) {
	type wire ValidationFailure
	out := wire(*f)
	if out.Details == nil {
		out.Details = []Detail{}
	}
	if out.Original == nil {
		out.Original = map[string]interface{}{}
	}
	return json.Marshal(out)
}

// Description renders every detail as a sentence: quotes removed, sentence-cased, ". " appended.
func (f *ValidationFailure) Description() string {
	var b strings.Builder
	for _, d := range f.Details {
		b.WriteString(sentence(d.Message))
		b.WriteString(". ")
	}
	return b.String()
}

// Result holds either the coerced payload or the failure.
type Result struct {
	Value   map[string]interface{}
	Failure *ValidationFailure
}

func (r Result) OK() bool { return r.Failure == nil }

// sensitiveKeys trigger redaction of the echoed payload. Compared lower-cased.
var sensitiveKeys = []string{"password", "firstname"}

// Validate checks payload against schema and returns the coerced payload or a failure.
// The payload itself is never modified.
func Validate(payload map[string]interface{}, schema *Schema, opts Options) Result {
	if payload == nil {
		payload = map[string]interface{}{}
	}

	value := make(map[string]interface{}, len(payload))
	var details []Detail

	add := func(d Detail) bool {
		details = append(details, d)
		return opts.AbortEarly
	}

fields:
	for _, f := range schema.fields {
		raw, present := payload[f.name]
		if !present {
			if f.required {
				if add(Detail{Message: quote(f.display()) + " is required", Type: "any.required", Path: f.name}) {
					break fields
				}
				continue
			}
			if f.hasDefault && !opts.NoDefaults {
				value[f.name] = f.def
			}
			continue
		}

		coerced, detail := coerce(f, raw)
		if detail != nil {
			if add(*detail) {
				break fields
			}
			continue
		}

		if f.rules != "" {
			if detail := schema.applyRules(f, coerced); detail != nil {
				if add(*detail) {
					break fields
				}
				continue
			}
		}
		value[f.name] = coerced
	}

	if len(details) == 0 || !opts.AbortEarly {
		unknown := make([]string, 0)
		for key := range payload {
			if _, declared := schema.index[key]; !declared {
				unknown = append(unknown, key)
			}
		}
		sort.Strings(unknown)
		for _, key := range unknown {
			if opts.AllowUnknown {
				value[key] = payload[key]
				continue
			}
			if add(Detail{Message: quote(key) + " is not allowed", Type: "object.unknown", Path: key}) {
				break
			}
		}
	}

	if len(details) > 0 {
		return Result{Failure: &ValidationFailure{
			Details:  details,
			Original: Redact(payload, opts.SafeFields),
		}}
	}
	return Result{Value: value}
}

// Redact returns a copy of payload. When payload holds a credential key, only the safe
// fields survive, and credential keys never do.
func Redact(payload map[string]interface{}, safeFields []string) map[string]interface{} {
	sensitive := false
	for key := range payload {
		if isSensitive(key) {
			sensitive = true
			break
		}
	}

	out := make(map[string]interface{}, len(payload))
	if !sensitive {
		for k, v := range payload {
			out[k] = v
		}
		return out
	}

	for _, key := range safeFields {
		if isSensitive(key) {
			continue
		}
		if v, ok := payload[key]; ok {
			out[key] = v
		}
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if lower == s {
			return true
		}
	}
	return false
}

func coerce(f Field, raw interface{}) (interface{}, *Detail) {
	label := quote(f.display())
	fail := func(msg, typ string) (interface{}, *Detail) {
		return nil, &Detail{Message: label + " " + msg, Type: typ, Path: f.name}
	}

	switch f.kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return fail("must be a string", "string.base")
		}
		if s == "" && !f.allowEmpty {
			return fail("is not allowed to be empty", "string.empty")
		}
		return s, nil

	case KindNumber, KindInteger:
		n, ok := toNumber(raw)
		if !ok {
			return fail("must be a number", "number.base")
		}
		if f.kind == KindInteger && n != math.Trunc(n) {
			return fail("must be an integer", "number.integer")
		}
		return n, nil

	case KindBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return fail("must be a boolean", "boolean.base")

	case KindDate:
		t, ok := toDate(raw)
		if !ok {
			return fail("must be a valid date", "date.base")
		}
		return t, nil

	case KindArray:
		if _, ok := raw.([]interface{}); !ok {
			return fail("must be an array", "array.base")
		}
		return raw, nil

	case KindObject:
		if _, ok := raw.(map[string]interface{}); !ok {
			return fail("must be of type object", "object.base")
		}
		return raw, nil
	}

	return raw, nil
}

func toNumber(raw interface{}) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func toDate(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (s *Schema) applyRules(f Field, value interface{}) *Detail {
	err := s.validate.Var(value, f.rules)
	if err == nil {
		return nil
	}

	var fieldErrs playgroundvalidator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &Detail{
			Message: fmt.Sprintf("%s failed custom validation because %s", quote(f.display()), err.Error()),
			Type:    "any.custom",
			Path:    f.name,
		}
	}

	fe := fieldErrs[0]
	msg, typ := ruleMessage(f.kind, fe.Tag(), fe.Param())
	return &Detail{Message: quote(f.display()) + " " + msg, Type: typ, Path: f.name}
}

func ruleMessage(kind Kind, tag, param string) (string, string) {
	numeric := kind == KindNumber || kind == KindInteger

	switch tag {
	case "required", "required_without", "required_with", "required_if":
		return "is required", "any.required"
	case "nefield", "ne":
		return "contains an invalid value", "any.invalid"
	case "min", "gte":
		switch {
		case numeric:
			return "must be greater than or equal to " + param, "number.min"
		case kind == KindArray:
			return fmt.Sprintf("must contain at least %s items", param), "array.min"
		}
		return fmt.Sprintf("length must be at least %s characters long", param), "string.min"
	case "max", "lte":
		switch {
		case numeric:
			return "must be less than or equal to " + param, "number.max"
		case kind == KindArray:
			return fmt.Sprintf("must contain less than or equal to %s items", param), "array.max"
		}
		return fmt.Sprintf("length must be less than or equal to %s characters long", param), "string.max"
	case "gt":
		return "must be greater than " + param, "number.greater"
	case "lt":
		return "must be less than " + param, "number.less"
	case "len":
		if kind == KindArray {
			return fmt.Sprintf("must contain %s items", param), "array.length"
		}
		return fmt.Sprintf("length must be %s characters long", param), "string.length"
	case "email":
		return "must be a valid email", "string.email"
	case "url", "uri", "http_url":
		return "must be a valid uri", "string.uri"
	case "uuid", "uuid4", "uuid_rfc4122", "uuid4_rfc4122":
		return "must be a valid GUID", "string.guid"
	case "alphanum":
		return "must only contain alpha-numeric characters", "string.alphanum"
	case "lowercase":
		return "must only contain lowercase characters", "string.lowercase"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.Join(strings.Fields(param), ", ")), "any.only"
	}
	return fmt.Sprintf("failed custom validation because it did not satisfy %q", tag), "any.custom"
}

func quote(name string) string {
	return `"` + name + `"`
}

// sentence strips quote characters and sentence-cases msg.
func sentence(msg string) string {
	msg = strings.NewReplacer(`"`, "", `'`, "").Replace(msg)
	if msg == "" {
		return msg
	}
	first, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(first)) + strings.ToLower(msg[size:])
}
