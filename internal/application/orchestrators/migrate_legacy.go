package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"outreach/internal/adapters/storage/docstore"
	"outreach/internal/application/contacts"
	"outreach/internal/domain/contact"
)

// Legacy collections that kept each set in its own collection.
const (
	LegacyActiveCollection   = "activeContacts"
	LegacyInactiveCollection = "inactiveContacts"
)

// MigrateLegacyDeps holds dependencies for MigrateLegacyContacts.
type MigrateLegacyDeps struct {
	Store docstore.Store
}

// MigrateLegacyResult counts what the migration did.
type MigrateLegacyResult struct {
	Copied  int
	Skipped int
}

// ExecuteMigrateLegacyContacts copies contacts from the two legacy
// collections into the contacts collection and removes the copied legacy
// documents. The contact id becomes the document id. Documents with no id
// at all cannot be addressed, so they are counted as skipped and left where
// they are.
// PRE: deps.Store is reachable
// POST: unless an error is returned, the legacy collections hold only skipped documents; running again copies nothing
func ExecuteMigrateLegacyContacts(ctx context.Context, deps MigrateLegacyDeps) (MigrateLegacyResult, error) {
	var result MigrateLegacyResult
	sources := []struct {
		collection string
		set        contact.Set
	}{
		{LegacyActiveCollection, contact.SetActive},
		{LegacyInactiveCollection, contact.SetInactive},
	}

	for _, src := range sources {
		docs, err := deps.Store.ListAll(ctx, src.collection)
		if err != nil {
			return result, fmt.Errorf("read %s: %w", src.collection, err)
		}
		for _, d := range docs {
			c, err := contact.FromDocument(d.ID, d.Data)
			if err != nil {
				slog.Warn("migration_event", "event", "document_skipped", "collection", src.collection, "document_id", d.ID, "error", err)
				result.Skipped++
				continue
			}
			c.Set = src.set
			if err := deps.Store.Set(ctx, contacts.Collection, c.ID, c.Document()); err != nil {
				return result, fmt.Errorf("copy %s/%s: %w", src.collection, d.ID, err)
			}
			if err := deps.Store.Delete(ctx, src.collection, d.ID); err != nil {
				return result, fmt.Errorf("remove %s/%s: %w", src.collection, d.ID, err)
			}
			result.Copied++
		}
	}

	if result.Copied > 0 || result.Skipped > 0 {
		slog.Info("migration_event", "event", "legacy_contacts_migrated", "copied", result.Copied, "skipped", result.Skipped)
	}
	return result, nil
}
