package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/txcache"
)

var _ = Describe("Event", func() {
	now := time.Unix(1735689600, 0).UTC()
	rec := txcache.Record{
		ID:       42,
		BranchID: 7,
		Type:     txcache.Working,
		Author:   "ada",
		Comment:  "first cut",
		Time:     now,
	}
	cs := &changeset.ChangeSet{
		BranchID: 7,
		Artifacts: []changeset.ArtifactChange{
			{
				ID:        100,
				GUID:      "guid-100",
				Type:      "Requirement",
				Name:      "Boot time",
				ModType:   artifact.New,
				Versioned: true,
				Attributes: []changeset.AttributeChange{
					{Type: "Priority", Value: "high", ModType: artifact.New},
				},
			},
			{ID: 101, Type: "Requirement", Name: "Old", ModType: artifact.Deleted, Versioned: true},
		},
		Relations: []changeset.RelationChange{
			{Type: "Supports", AArtifactID: 100, BArtifactID: 101, ModType: artifact.Modified},
		},
	}

	It("summarizes the change set", func() {
		event := eventstream.NewChangeSetCommittedEvent(rec, cs, now)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeChangeSetCommitted))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.Transaction.ID).To(Equal(int64(42)))
		Expect(event.Transaction.BranchID).To(Equal(int64(7)))
		Expect(event.Artifacts).To(HaveLen(2))
		Expect(event.Artifacts[0].Change).To(Equal("added"))
		Expect(event.Artifacts[0].Attributes).To(ConsistOf("Priority"))
		Expect(event.Artifacts[1].Change).To(Equal("deleted"))
		Expect(event.Relations).To(ConsistOf(eventstream.RelationSummary{
			Type: "Supports", A: 100, B: 101, Change: "changed",
		}))
	})

	It("marshals with expected top-level keys", func() {
		payload, err := json.Marshal(eventstream.NewChangeSetCommittedEvent(rec, cs, now))
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("transaction"))
		Expect(got).To(HaveKey("artifacts"))
		Expect(got).To(HaveKey("relations"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeChangeSetCommitted).To(Equal("grove.changeset.committed"))
	})

	It("provides ErrNilChangeSetEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilChangeSetEvent).To(MatchError("nil change set event"))
	})
})
