package contact

import (
	"errors"
	"strings"
)

// Set identifies which of the two contact lists a contact belongs to.
type Set string

const (
	SetActive   Set = "active"   // to be contacted
	SetInactive Set = "inactive" // do not contact
)

// Channel values for TextOrDM. The empty string means unset.
const (
	ChannelText = "Text"
	ChannelDM   = "DM"
)

// EscalationThreshold is the noResponse count at which a contact is flagged.
const EscalationThreshold = 3

// Document field names. These are the keys stored in the document store.
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldWhoContacts  = "whoContacts"
	FieldContactNotes = "contactNotes"
	FieldTextOrDM     = "textOrDM"
	FieldGeneralNotes = "generalNotes"
	FieldEvents       = "events"
	FieldPhone        = "phone"
	FieldSocial       = "social"
	FieldContacted    = "contacted"
	FieldNoResponse   = "noResponse"
	FieldSet          = "set"
)

// Domain errors
var (
	ErrNotFound   = errors.New("contact not found")
	ErrInvalidSet = errors.New("set must be 'active' or 'inactive'")
	ErrMissingID  = errors.New("contact document has no id")
)

// RowState is the display state of a contact row.
type RowState string

const (
	RowNeutral   RowState = "neutral"
	RowContacted RowState = "contacted"
	RowEscalated RowState = "escalated"
)

// Contact is a person the organization reaches out to.
// INVARIANT: NoResponse >= 0. Set is SetActive or SetInactive.
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	WhoContacts  string `json:"whoContacts"`
	ContactNotes string `json:"contactNotes"`
	TextOrDM     string `json:"textOrDM"`
	GeneralNotes string `json:"generalNotes"`
	Events       string `json:"events"`
	Phone        string `json:"phone"`
	Social       string `json:"social"`
	Contacted    bool   `json:"contacted"`
	NoResponse   int    `json:"noResponse"`
	Set          Set    `json:"set"`
}

// Fields carries the user-editable text fields of a new contact.
type Fields struct {
	Name         string `json:"name"`
	WhoContacts  string `json:"whoContacts"`
	ContactNotes string `json:"contactNotes"`
	TextOrDM     string `json:"textOrDM"`
	GeneralNotes string `json:"generalNotes"`
	Events       string `json:"events"`
	Phone        string `json:"phone"`
	Social       string `json:"social"`
}

// ParseSet converts a raw value into a Set.
// PRE: none
// POST: returns the Set, or ErrInvalidSet for anything but "active"/"inactive"
func ParseSet(raw string) (Set, error) {
	switch Set(strings.ToLower(strings.TrimSpace(raw))) {
	case SetActive:
		return SetActive, nil
	case SetInactive:
		return SetInactive, nil
	}
	return "", ErrInvalidSet
}

// Valid reports whether s is one of the two known sets.
func (s Set) Valid() bool {
	return s == SetActive || s == SetInactive
}

// Opposite returns the set a contact moves to.
func (s Set) Opposite() Set {
	if s == SetActive {
		return SetInactive
	}
	return SetActive
}

// NormalizeChannel maps a raw channel value onto Text, DM or unset.
func NormalizeChannel(raw string) string {
	switch strings.TrimSpace(raw) {
	case ChannelText:
		return ChannelText
	case ChannelDM:
		return ChannelDM
	}
	return ""
}

// New builds a freshly created contact.
// PRE: id is non-empty, set is valid
// POST: NoResponse is 0, Contacted is false
func New(id string, set Set, f Fields) Contact {
	return Contact{
		ID:           id,
		Name:         f.Name,
		WhoContacts:  f.WhoContacts,
		ContactNotes: f.ContactNotes,
		TextOrDM:     NormalizeChannel(f.TextOrDM),
		GeneralNotes: f.GeneralNotes,
		Events:       f.Events,
		Phone:        f.Phone,
		Social:       f.Social,
		Set:          set,
	}
}

// ToggleContacted flips the contacted flag.
func (c *Contact) ToggleContacted() {
	c.Contacted = !c.Contacted
}

// IncrementNoResponse adds one to the no-response counter.
func (c *Contact) IncrementNoResponse() {
	c.NoResponse++
}

// DecrementNoResponse subtracts one from the no-response counter.
// PRE: none
// POST: returns false and leaves the counter untouched when it is already 0
func (c *Contact) DecrementNoResponse() bool {
	if c.NoResponse <= 0 {
		c.NoResponse = 0
		return false
	}
	c.NoResponse--
	return true
}

// MoveTo places the contact in the target set and rewrites its tracking fields.
// Moving to inactive marks it contacted with noResponse at the threshold;
// moving back to active clears both.
// PRE: target is valid
// POST: Set == target
func (c *Contact) MoveTo(target Set) {
	c.Set = target
	if target == SetInactive {
		c.NoResponse = EscalationThreshold
		c.Contacted = true
		return
	}
	c.NoResponse = 0
	c.Contacted = false
}

// RowState derives the highlight for the contact's row.
// Escalation wins over contacted.
func (c Contact) RowState() RowState {
	if c.NoResponse >= EscalationThreshold {
		return RowEscalated
	}
	if c.Contacted {
		return RowContacted
	}
	return RowNeutral
}

// Document encodes the contact as a store document.
func (c Contact) Document() map[string]any {
	return map[string]any{
		FieldID:           c.ID,
		FieldName:         c.Name,
		FieldWhoContacts:  c.WhoContacts,
		FieldContactNotes: c.ContactNotes,
		FieldTextOrDM:     c.TextOrDM,
		FieldGeneralNotes: c.GeneralNotes,
		FieldEvents:       c.Events,
		FieldPhone:        c.Phone,
		FieldSocial:       c.Social,
		FieldContacted:    c.Contacted,
		FieldNoResponse:   c.NoResponse,
		FieldSet:          string(c.Set),
	}
}

// TrackingDocument returns the partial document written by a move.
func (c Contact) TrackingDocument() map[string]any {
	return map[string]any{
		FieldSet:        string(c.Set),
		FieldNoResponse: c.NoResponse,
		FieldContacted:  c.Contacted,
	}
}

// Patch is a partial update of a contact's free-text fields.
// A nil field is left untouched.
type Patch struct {
	Name         *string `json:"name,omitempty"`
	WhoContacts  *string `json:"whoContacts,omitempty"`
	ContactNotes *string `json:"contactNotes,omitempty"`
	TextOrDM     *string `json:"textOrDM,omitempty"`
	GeneralNotes *string `json:"generalNotes,omitempty"`
	Events       *string `json:"events,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Social       *string `json:"social,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Document()) == 0
}

// Apply writes the set fields of the patch onto c.
// POST: TextOrDM, when patched, is normalized
func (p Patch) Apply(c *Contact) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.WhoContacts != nil {
		c.WhoContacts = *p.WhoContacts
	}
	if p.ContactNotes != nil {
		c.ContactNotes = *p.ContactNotes
	}
	if p.TextOrDM != nil {
		c.TextOrDM = NormalizeChannel(*p.TextOrDM)
	}
	if p.GeneralNotes != nil {
		c.GeneralNotes = *p.GeneralNotes
	}
	if p.Events != nil {
		c.Events = *p.Events
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Social != nil {
		c.Social = *p.Social
	}
}

// Document returns only the patched fields, keyed by document field name.
func (p Patch) Document() map[string]any {
	doc := make(map[string]any)
	set := func(key string, v *string) {
		if v != nil {
			doc[key] = *v
		}
	}
	set(FieldName, p.Name)
	set(FieldWhoContacts, p.WhoContacts)
	set(FieldContactNotes, p.ContactNotes)
	if p.TextOrDM != nil {
		doc[FieldTextOrDM] = NormalizeChannel(*p.TextOrDM)
	}
	set(FieldGeneralNotes, p.GeneralNotes)
	set(FieldEvents, p.Events)
	set(FieldPhone, p.Phone)
	set(FieldSocial, p.Social)
	return doc
}
