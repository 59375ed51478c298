package contact

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FromDocument decodes a stored document into a Contact, coercing every
// field into the fixed schema. Documents written by older clients may carry
// numbers as strings, floats, or be missing fields entirely.
// PRE: doc is the raw document; docID is its store identifier
// POST: returns a Contact satisfying the Contact invariants, or ErrMissingID
func FromDocument(docID string, doc map[string]any) (Contact, error) {
	id := asString(doc[FieldID])
	if id == "" {
		id = docID
	}
	if id == "" {
		return Contact{}, ErrMissingID
	}

	set, err := ParseSet(asString(doc[FieldSet]))
	if err != nil {
		set = SetActive
	}

	return Contact{
		ID:           id,
		Name:         asString(doc[FieldName]),
		WhoContacts:  asString(doc[FieldWhoContacts]),
		ContactNotes: asString(doc[FieldContactNotes]),
		TextOrDM:     NormalizeChannel(asString(doc[FieldTextOrDM])),
		GeneralNotes: asString(doc[FieldGeneralNotes]),
		Events:       asString(doc[FieldEvents]),
		Phone:        asString(doc[FieldPhone]),
		Social:       asString(doc[FieldSocial]),
		Contacted:    asBool(doc[FieldContacted]),
		NoResponse:   asCount(doc[FieldNoResponse]),
		Set:          set,
	}, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	}
	return false
}

// asCount coerces a counter value; negative or unparsable becomes 0.
func asCount(v any) int {
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case float32:
		n = floatCount(float64(t))
	case float64:
		n = floatCount(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n = i
		} else if f, err := t.Float64(); err == nil {
			n = floatCount(f)
		}
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			n = i
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			n = floatCount(f)
		}
	}
	if n < 0 || n > math.MaxInt32 {
		return 0
	}
	return int(n)
}

func floatCount(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Trunc(f))
}
