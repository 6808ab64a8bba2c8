package nop_test

import (
	"bytes"
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("returns ErrNilChangeSetEvent for nil events", func() {
		p := nop.NewPublisher(nil)
		err := p.PublishChangeSet(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilChangeSetEvent))
	})

	It("drops events and logs them at debug level", func() {
		var buf bytes.Buffer
		p := nop.NewPublisher(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

		err := p.PublishChangeSet(context.Background(), &eventstream.ChangeSetCommittedEvent{
			Transaction: eventstream.TransactionMeta{ID: 42, BranchID: 3},
			Artifacts:   []eventstream.ArtifactSummary{{ID: 7}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring(`"transaction":42`))
		Expect(buf.String()).To(ContainSubstring(`"artifacts":1`))
	})

	It("closes successfully", func() {
		Expect(nop.NewPublisher(nil).Close()).To(Succeed())
	})
})
