package projections_test

import (
	"context"
	"net/url"
	"testing"

	"outreach/internal/adapters/storage/docstore"
	"outreach/internal/application/contactors"
	"outreach/internal/application/contacts"
	"outreach/internal/application/projections"
	"outreach/internal/application/writes"
	"outreach/internal/domain/contact"
	"outreach/internal/domain/outbox"
)

type directWriter struct{ store docstore.Store }

func (w directWriter) Apply(ctx context.Context, op writes.Op) (writes.Outcome, error) {
	if err := op.Apply(ctx, w.store); err != nil {
		return writes.Rejected, nil
	}
	return writes.Applied, nil
}

type fakeSync struct{ status writes.Status }

func (f fakeSync) Status(context.Context) (writes.Status, error) { return f.status, nil }

func newDeps(t *testing.T) (projections.GetContactViewDeps, *contacts.Repository, *contactors.Manager) {
	t.Helper()
	store := docstore.NewMemoryStore()
	w := directWriter{store: store}
	repo := contacts.NewRepository(store, w, contacts.Options{})
	refs := contactors.NewManager(store, w)
	return projections.GetContactViewDeps{Contacts: repo, References: refs}, repo, refs
}

func names(rows []projections.ContactRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseContactViewQuery_Defaults(t *testing.T) {
	q := projections.ParseContactViewQuery(url.Values{})
	if q.Set != contact.SetActive || q.Search != "" || q.RefFilter != "All" || q.ChannelFilter != "All" || q.Modal != "" {
		t.Errorf("defaults = %+v", q)
	}

	q = projections.ParseContactViewQuery(url.Values{"set": {"gone"}, "channel": {"Fax"}, "modal": {"explode"}})
	if q.Set != contact.SetActive || q.ChannelFilter != "All" || q.Modal != "" {
		t.Errorf("invalid values not defaulted: %+v", q)
	}
}

func TestContactViewQuery_LinkRoundTrip(t *testing.T) {
	q := projections.ContactViewQuery{Set: contact.SetInactive, Search: "bob", RefFilter: "Sam", ChannelFilter: "DM"}
	raw := q.Link("modal", "add")
	parsed, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	got := projections.ParseContactViewQuery(parsed)
	if got.Set != q.Set || got.Search != q.Search || got.RefFilter != q.RefFilter || got.ChannelFilter != q.ChannelFilter || got.Modal != "add" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestVisibleRows(t *testing.T) {
	all := []contact.Contact{
		{ID: "1", Name: "Alice", Phone: "555-1000", WhoContacts: "Sam", TextOrDM: "Text"},
		{ID: "2", Name: "Bob", Phone: "123-4567", Social: "@bob555", WhoContacts: "Jo", TextOrDM: "DM"},
		{ID: "3", Name: "Cara", Phone: "555-3000", WhoContacts: "Jo"},
		{ID: "4", Name: "Dan", Social: "@DANNY"},
	}
	tests := []struct {
		name  string
		query projections.ContactViewQuery
		want  []string
	}{
		{"default filters keep order", projections.ContactViewQuery{RefFilter: "All", ChannelFilter: "All"}, []string{"1", "2", "3", "4"}},
		{"555 search", projections.ContactViewQuery{Search: "555", RefFilter: "All", ChannelFilter: "All"}, []string{"1", "2", "3"}},
		{"555 with reference filter", projections.ContactViewQuery{Search: "555", RefFilter: "Jo", ChannelFilter: "All"}, []string{"2", "3"}},
		{"name ignores case", projections.ContactViewQuery{Search: "aLiCe", RefFilter: "All", ChannelFilter: "All"}, []string{"1"}},
		{"social ignores case", projections.ContactViewQuery{Search: "danny", RefFilter: "All", ChannelFilter: "All"}, []string{"4"}},
		{"channel filter", projections.ContactViewQuery{RefFilter: "All", ChannelFilter: "DM"}, []string{"2"}},
		{"no match", projections.ContactViewQuery{Search: "zzz", RefFilter: "All", ChannelFilter: "All"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := projections.VisibleRows(all, tt.query)
			got := make([]string, len(rows))
			for i, r := range rows {
				got[i] = r.ID
			}
			if !equal(got, tt.want) {
				t.Errorf("VisibleRows ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryGetContactView_EscalationScenario(t *testing.T) {
	deps, repo, _ := newDeps(t)
	ctx := context.Background()
	repo.Create(ctx, contact.SetActive, contact.Fields{Name: "Alice", Phone: "555-1000"})
	bob, _ := repo.Create(ctx, contact.SetActive, contact.Fields{Name: "Bob", Phone: "555-2000"})
	repo.IncrementNoResponse(ctx, contact.SetActive, bob.ID)
	repo.IncrementNoResponse(ctx, contact.SetActive, bob.ID)

	for i := 0; i < 3; i++ {
		repo.IncrementNoResponse(ctx, contact.SetActive, bob.ID)
	}

	view, err := projections.QueryGetContactView(ctx, projections.ParseContactViewQuery(url.Values{}), deps)
	if err != nil {
		t.Fatalf("QueryGetContactView: %v", err)
	}
	if !equal(names(view.Rows), []string{"Alice", "Bob"}) {
		t.Fatalf("rows = %v", names(view.Rows))
	}
	if view.Rows[0].State != contact.RowNeutral {
		t.Errorf("Alice state = %s, want neutral", view.Rows[0].State)
	}
	if view.Rows[1].NoResponse != 5 || view.Rows[1].State != contact.RowEscalated {
		t.Errorf("Bob = %d/%s, want 5/escalated", view.Rows[1].NoResponse, view.Rows[1].State)
	}
}

func TestQueryGetContactView_Options(t *testing.T) {
	deps, _, refs := newDeps(t)
	ctx := context.Background()
	refs.AddName(ctx, "Sam")
	refs.AddName(ctx, "Jo")

	view, _ := projections.QueryGetContactView(ctx, projections.ParseContactViewQuery(url.Values{}), deps)
	if !equal(view.FilterOptions, []string{"All", "Sam", "Jo"}) {
		t.Errorf("FilterOptions = %v", view.FilterOptions)
	}
	if !equal(view.FormOptions, []string{"Sam", "Jo"}) {
		t.Errorf("FormOptions = %v", view.FormOptions)
	}
}

func TestQueryGetContactView_ModalTarget(t *testing.T) {
	deps, repo, _ := newDeps(t)
	ctx := context.Background()
	c, _ := repo.Create(ctx, contact.SetInactive, contact.Fields{Name: "Bob", GeneralNotes: "long note"})

	view, _ := projections.QueryGetContactView(ctx, projections.ParseContactViewQuery(url.Values{
		"set": {"inactive"}, "modal": {"cell"}, "id": {c.ID}, "field": {"generalNotes"},
	}), deps)
	if view.Target == nil || view.CellText != "long note" {
		t.Errorf("cell modal = %+v / %q", view.Target, view.CellText)
	}

	// Target not in the selected set closes the modal.
	view, _ = projections.QueryGetContactView(ctx, projections.ParseContactViewQuery(url.Values{
		"modal": {"edit"}, "id": {c.ID},
	}), deps)
	if view.Query.Modal != projections.ModalNone || view.Target != nil {
		t.Errorf("modal should be closed, got %q", view.Query.Modal)
	}
}

func TestQueryGetContactView_SyncBanner(t *testing.T) {
	deps, _, _ := newDeps(t)
	deps.Sync = fakeSync{status: writes.Status{Pending: 2, Failed: []outbox.Entry{{ID: "x"}}}}

	view, _ := projections.QueryGetContactView(context.Background(), projections.ContactViewQuery{Set: contact.SetActive}, deps)
	if !view.Sync.Show() || view.Sync.Pending != 2 || view.Sync.Failed != 1 {
		t.Errorf("Sync = %+v", view.Sync)
	}
}
