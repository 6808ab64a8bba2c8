package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/eventstream/kafka"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *recordingWriter
		p *kafka.Publisher
	)

	BeforeEach(func() {
		w = &recordingWriter{}
		p = kafka.NewPublisherWithWriter(w, slog.New(slog.DiscardHandler))
	})

	It("rejects configs without brokers or topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"}, slog.New(slog.DiscardHandler))
		Expect(err).To(HaveOccurred())
		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}}, slog.New(slog.DiscardHandler))
		Expect(err).To(HaveOccurred())
	})

	It("returns ErrNilChangeSetEvent for nil events", func() {
		Expect(p.PublishChangeSet(context.Background(), nil)).To(MatchError(eventstream.ErrNilChangeSetEvent))
		Expect(w.msgs).To(BeEmpty())
	})

	It("writes the event as JSON keyed by branch", func() {
		event := &eventstream.ChangeSetCommittedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeChangeSetCommitted,
			EventID:       "evt-1",
			Transaction:   eventstream.TransactionMeta{ID: 9, BranchID: 3},
		}
		Expect(p.PublishChangeSet(context.Background(), event)).To(Succeed())

		Expect(w.msgs).To(HaveLen(1))
		Expect(string(w.msgs[0].Key)).To(Equal("3"))

		var got eventstream.ChangeSetCommittedEvent
		Expect(json.Unmarshal(w.msgs[0].Value, &got)).To(Succeed())
		Expect(got.EventID).To(Equal("evt-1"))
		Expect(got.Transaction.ID).To(Equal(int64(9)))
	})

	It("wraps writer failures", func() {
		w.err = errors.New("broker down")
		err := p.PublishChangeSet(context.Background(), &eventstream.ChangeSetCommittedEvent{})
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
