package projections

import (
	"context"
	"log/slog"
	"net/url"

	"outreach/internal/application/listutil"
	"outreach/internal/application/writes"
	"outreach/internal/domain/contact"
	"outreach/internal/domain/contactor"
)

// Query parameter names of the contacts page.
const (
	ParamSet     = "set"
	ParamWho     = "who"
	ParamChannel = "channel"
	ParamModal   = "modal"
	ParamTarget  = "id"
	ParamField   = "field"
)

// Modal dialogs of the contacts page.
const (
	ModalNone       = ""
	ModalAdd        = "add"
	ModalEdit       = "edit"
	ModalDelete     = "delete"
	ModalMove       = "move"
	ModalContactors = "contactors"
	ModalCell       = "cell"
)

var (
	setOptions     = []string{string(contact.SetActive), string(contact.SetInactive)}
	channelOptions = []string{contactor.AllOption, contact.ChannelText, contact.ChannelDM}
	modalOptions   = []string{ModalAdd, ModalEdit, ModalDelete, ModalMove, ModalContactors, ModalCell}
	cellFields     = []string{
		contact.FieldContactNotes, contact.FieldGeneralNotes, contact.FieldEvents,
		contact.FieldPhone, contact.FieldSocial, contact.FieldName,
	}
)

// ContactViewQuery is the view state of the contacts page.
type ContactViewQuery struct {
	Set           contact.Set
	Search        string
	RefFilter     string // "All" or a reference name
	ChannelFilter string // "All", "Text" or "DM"
	Modal         string
	TargetID      string
	CellField     string
}

// ParseContactViewQuery reads view state from query values.
// POST: unknown or missing values fall back to active, empty search, All, All, no modal
func ParseContactViewQuery(q url.Values) ContactViewQuery {
	fp := listutil.ParseFilterParams(q, []string{ParamWho})
	ref := fp.Filters[ParamWho]
	if ref == "" {
		ref = contactor.AllOption
	}
	v := ContactViewQuery{
		Set:           contact.Set(listutil.ParseChoice(q, ParamSet, setOptions, string(contact.SetActive))),
		Search:        fp.Search,
		RefFilter:     ref,
		ChannelFilter: listutil.ParseChoice(q, ParamChannel, channelOptions, contactor.AllOption),
		Modal:         listutil.ParseChoice(q, ParamModal, modalOptions, ModalNone),
		TargetID:      q.Get(ParamTarget),
	}
	if v.Modal == ModalCell {
		v.CellField = listutil.ParseChoice(q, ParamField, cellFields, "")
	}
	return v
}

// Values encodes the filter state, without modal state.
func (v ContactViewQuery) Values() url.Values {
	q := url.Values{}
	if v.Set != contact.SetActive {
		q.Set(ParamSet, string(v.Set))
	}
	if v.Search != "" {
		q.Set(listutil.SearchKey, v.Search)
	}
	if v.RefFilter != contactor.AllOption {
		q.Set(ParamWho, v.RefFilter)
	}
	if v.ChannelFilter != contactor.AllOption {
		q.Set(ParamChannel, v.ChannelFilter)
	}
	return q
}

// Link returns the query string of this view with pairs applied.
func (v ContactViewQuery) Link(pairs ...string) string {
	return listutil.With(v.Values(), pairs...)
}

// VisibleRows filters contacts, keeping their order. A contact is visible
// when name, phone or social contains the search text ignoring case, its
// whoContacts equals the reference filter, and its channel equals the
// channel filter. "All" and an empty search match everything.
func VisibleRows(contacts []contact.Contact, v ContactViewQuery) []contact.Contact {
	rows := make([]contact.Contact, 0, len(contacts))
	for _, c := range contacts {
		if v.Search != "" &&
			!listutil.ContainsFold(c.Name, v.Search) &&
			!listutil.ContainsFold(c.Phone, v.Search) &&
			!listutil.ContainsFold(c.Social, v.Search) {
			continue
		}
		if v.RefFilter != "" && v.RefFilter != contactor.AllOption && c.WhoContacts != v.RefFilter {
			continue
		}
		if v.ChannelFilter != "" && v.ChannelFilter != contactor.AllOption && c.TextOrDM != v.ChannelFilter {
			continue
		}
		rows = append(rows, c)
	}
	return rows
}

// ContactRow is a visible contact with its highlight.
type ContactRow struct {
	contact.Contact
	State contact.RowState `json:"state"`
}

// SyncBanner summarises writes that have not reached the store.
type SyncBanner struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// Show reports whether the banner should be displayed.
func (b SyncBanner) Show() bool {
	return b.Pending > 0 || b.Failed > 0
}

// ContactView is everything the contacts page renders.
type ContactView struct {
	Query          ContactViewQuery
	Rows           []ContactRow
	Target         *contact.Contact // contact the open modal acts on
	CellText       string
	FilterOptions  []string
	FormOptions    []string
	ChannelOptions []string
	Names          []string
	ActiveCount    int
	InactiveCount  int
	Sync           SyncBanner
}

// ContactSource reads the in-memory contact sets.
type ContactSource interface {
	List(set contact.Set) []contact.Contact
	Find(id string) (contact.Contact, error)
	Counts() (active, inactive int)
}

// ReferenceSource reads the reference names.
type ReferenceSource interface {
	Names() []string
	FilterOptions() []string
	FormOptions() []string
}

// SyncSource reports the write backlog.
type SyncSource interface {
	Status(ctx context.Context) (writes.Status, error)
}

// GetContactViewDeps holds dependencies for QueryGetContactView.
type GetContactViewDeps struct {
	Contacts   ContactSource
	References ReferenceSource
	Sync       SyncSource // optional
}

// QueryGetContactView builds the contacts page for the given view state.
// PRE: deps.Contacts and deps.References are set
// POST: Rows hold the visible contacts of the selected set in order; a modal
// whose target is not in the selected set is closed
func QueryGetContactView(ctx context.Context, query ContactViewQuery, deps GetContactViewDeps) (ContactView, error) {
	visible := VisibleRows(deps.Contacts.List(query.Set), query)
	rows := make([]ContactRow, len(visible))
	for i, c := range visible {
		rows[i] = ContactRow{Contact: c, State: c.RowState()}
	}

	view := ContactView{
		Query:          query,
		Rows:           rows,
		FilterOptions:  deps.References.FilterOptions(),
		FormOptions:    deps.References.FormOptions(),
		ChannelOptions: channelOptions,
		Names:          deps.References.Names(),
	}
	view.ActiveCount, view.InactiveCount = deps.Contacts.Counts()

	switch query.Modal {
	case ModalEdit, ModalDelete, ModalMove, ModalCell:
		c, err := deps.Contacts.Find(query.TargetID)
		if err != nil || c.Set != query.Set || (query.Modal == ModalCell && query.CellField == "") {
			view.Query.Modal = ModalNone
			break
		}
		view.Target = &c
		if query.Modal == ModalCell {
			view.CellText = cellText(c, query.CellField)
		}
	}

	if deps.Sync != nil {
		status, err := deps.Sync.Status(ctx)
		if err != nil {
			slog.Warn("contact_event", "event", "sync_status_failed", "error", err)
		} else {
			view.Sync = SyncBanner{Pending: status.Pending, Failed: len(status.Failed)}
		}
	}
	return view, nil
}

func cellText(c contact.Contact, field string) string {
	switch field {
	case contact.FieldName:
		return c.Name
	case contact.FieldContactNotes:
		return c.ContactNotes
	case contact.FieldGeneralNotes:
		return c.GeneralNotes
	case contact.FieldEvents:
		return c.Events
	case contact.FieldPhone:
		return c.Phone
	case contact.FieldSocial:
		return c.Social
	}
	return ""
}
