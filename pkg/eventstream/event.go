package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/txcache"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeChangeSetCommitted is emitted after a transaction commits.
	EventTypeChangeSetCommitted = "grove.changeset.committed"
)

// ChangeSetCommittedEvent is a transport-neutral event payload for a
// committed transaction.
type ChangeSetCommittedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Transaction   TransactionMeta   `json:"transaction"`
	Artifacts     []ArtifactSummary `json:"artifacts"`
	Relations     []RelationSummary `json:"relations,omitempty"`
}

// TransactionMeta describes the commit record.
type TransactionMeta struct {
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id"`
	Author    string    `json:"author,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Committed time.Time `json:"committed"`
}

// ArtifactSummary names one changed artifact.
type ArtifactSummary struct {
	ID         int64    `json:"id"`
	GUID       string   `json:"guid"`
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Change     string   `json:"change"`
	Attributes []string `json:"attributes,omitempty"`
}

// RelationSummary names one changed relation.
type RelationSummary struct {
	Type   string `json:"type"`
	A      int64  `json:"a"`
	B      int64  `json:"b"`
	Change string `json:"change"`
}

// NewChangeSetCommittedEvent builds the event for a committed change set.
func NewChangeSetCommittedEvent(rec txcache.Record, cs *changeset.ChangeSet, now time.Time) *ChangeSetCommittedEvent {
	event := &ChangeSetCommittedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeChangeSetCommitted,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Transaction: TransactionMeta{
			ID:        rec.ID,
			BranchID:  rec.BranchID,
			Author:    rec.Author,
			Comment:   rec.Comment,
			Committed: rec.Time.UTC(),
		},
		Artifacts: make([]ArtifactSummary, 0, len(cs.Artifacts)),
	}

	for _, a := range cs.Artifacts {
		s := ArtifactSummary{
			ID:     a.ID,
			GUID:   a.GUID,
			Type:   a.Type,
			Name:   a.Name,
			Change: a.Kind().String(),
		}
		for _, attr := range a.Attributes {
			s.Attributes = append(s.Attributes, attr.Type)
		}
		event.Artifacts = append(event.Artifacts, s)
	}

	for _, r := range cs.Relations {
		event.Relations = append(event.Relations, RelationSummary{
			Type:   r.Type,
			A:      r.AArtifactID,
			B:      r.BArtifactID,
			Change: r.Kind().String(),
		})
	}

	return event
}
