package event

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Max length constants.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 5000
	MaxDetailsLength     = 5000
	MaxImageURLLength    = 2048
)

// DateLayout is the stored date format.
const DateLayout = "2006-01-02"

// Document field names.
const (
	FieldName        = "name"
	FieldDate        = "date"
	FieldDescription = "description"
	FieldDetails     = "details"
	FieldImageURL    = "imageUrl"
)

// EditableFields lists the fields staff may change one at a time.
var EditableFields = []string{FieldName, FieldDate, FieldDescription, FieldDetails, FieldImageURL}

// Domain errors
var (
	ErrNotFound     = errors.New("event not found")
	ErrUnknownField = errors.New("field is not editable")
	ErrInvalidDate  = errors.New("event date must be YYYY-MM-DD")
	ErrInvalidImage = errors.New("image URL must be an http or https URL")
	ErrTooLong      = errors.New("event field too long")
)

// Event is a public organization event.
// A freshly created event is blank; every field may be empty.
// INVARIANT: Date is empty or YYYY-MM-DD. ImageURL is empty or an absolute http(s) URL.
type Event struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Details     string `json:"details"`
	ImageURL    string `json:"imageUrl"`
}

// Validate checks the event's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (e *Event) Validate() error {
	if len(e.Name) > MaxNameLength {
		return fmt.Errorf("%w: name cannot exceed %d characters", ErrTooLong, MaxNameLength)
	}
	if e.Date != "" {
		if _, err := time.Parse(DateLayout, e.Date); err != nil {
			return ErrInvalidDate
		}
	}
	if len(e.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description cannot exceed %d characters", ErrTooLong, MaxDescriptionLength)
	}
	if len(e.Details) > MaxDetailsLength {
		return fmt.Errorf("%w: details cannot exceed %d characters", ErrTooLong, MaxDetailsLength)
	}
	if e.ImageURL != "" {
		if len(e.ImageURL) > MaxImageURLLength {
			return ErrInvalidImage
		}
		u, err := url.Parse(e.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidImage
		}
	}
	return nil
}

// SetField updates a single editable field.
// PRE: field is one of EditableFields
// POST: the field holds value and the event still validates, or an error is returned and e is unchanged
func (e *Event) SetField(field, value string) error {
	next := *e
	switch field {
	case FieldName:
		next.Name = value
	case FieldDate:
		next.Date = value
	case FieldDescription:
		next.Description = value
	case FieldDetails:
		next.Details = value
	case FieldImageURL:
		next.ImageURL = value
	default:
		return ErrUnknownField
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*e = next
	return nil
}

// Document encodes the event as a store document.
func (e Event) Document() map[string]any {
	return map[string]any{
		FieldName:        e.Name,
		FieldDate:        e.Date,
		FieldDescription: e.Description,
		FieldDetails:     e.Details,
		FieldImageURL:    e.ImageURL,
	}
}

// FromDocument decodes a stored event. Non-string values are dropped.
func FromDocument(id string, doc map[string]any) Event {
	str := func(key string) string {
		s, _ := doc[key].(string)
		return s
	}
	return Event{
		ID:          id,
		Name:        str(FieldName),
		Date:        str(FieldDate),
		Description: str(FieldDescription),
		Details:     str(FieldDetails),
		ImageURL:    str(FieldImageURL),
	}
}
