package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"star-clicker/internal/model"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clickEvent(id uuid.UUID, value int64, at time.Time) model.ClickEvent {
	return model.ClickEvent{
		PlayerID:    id,
		ClickValue:  decimal.NewFromInt(value),
		DailyClicks: 1,
		Date:        at.Format(model.DateLayout),
		OccurredAt:  at,
	}
}

func TestPublishClick_SendsJSONKeyedByPlayer(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	id := uuid.New()

	producer.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got model.ClickEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.PlayerID != id || !got.ClickValue.Equal(decimal.NewFromInt(3)) {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := NewPublisherFromProducer(producer, "clicks")
	require.NoError(t, p.PublishClick(context.Background(), clickEvent(id, 3, t0)))
	require.NoError(t, p.Close())
}

func TestPublishClick_DeliveryFailureIsNotReturned(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherFromProducer(producer, "clicks")
	assert.NoError(t, p.PublishClick(context.Background(), clickEvent(uuid.New(), 1, t0)))
	require.NoError(t, p.Close())
}

func TestDecodeEvent(t *testing.T) {
	want := clickEvent(uuid.New(), 2, t0)
	data, err := json.Marshal(want)
	require.NoError(t, err)

	got, err := decodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, want.PlayerID, got.PlayerID)
	assert.True(t, got.ClickValue.Equal(want.ClickValue))
	assert.True(t, got.OccurredAt.Equal(want.OccurredAt))

	_, err = decodeEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeEvent([]byte(`{"click_value":"1"}`))
	assert.ErrorIs(t, err, errInvalidEvent)
}

func TestAggregate(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	events := []model.ClickEvent{
		clickEvent(a, 1, t0),
		clickEvent(b, 2, t0.Add(time.Second)),
		clickEvent(a, 3, t0.Add(2*time.Second)),
		clickEvent(a, 3, t0.Add(time.Second)),
	}

	rows := Aggregate(events)
	require.Len(t, rows, 2)

	assert.Equal(t, a, rows[0].PlayerID)
	assert.Equal(t, int64(3), rows[0].ClicksCount)
	assert.True(t, rows[0].StarsEarned.Equal(decimal.NewFromInt(7)))
	assert.True(t, rows[0].CreatedAt.Equal(t0.Add(2*time.Second)))

	assert.Equal(t, b, rows[1].PlayerID)
	assert.Equal(t, int64(1), rows[1].ClicksCount)

	assert.Empty(t, Aggregate(nil))
}

// ============================================
// ConsumeClaim
// ============================================

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

// flakyWriter fails its first n writes, n = failures.
type flakyWriter struct {
	mu       sync.Mutex
	failures int
	rows     []model.ClickHistory
}

func (w *flakyWriter) InsertClickHistory(_ context.Context, rows []model.ClickHistory) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("store unavailable")
	}
	w.rows = append(w.rows, rows...)
	return nil
}

func (w *flakyWriter) written() []model.ClickHistory {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.ClickHistory(nil), w.rows...)
}

func newClaim(t *testing.T, offsets []int64, id uuid.UUID, closeAfter bool) *fakeClaim {
	t.Helper()
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(offsets))}
	for _, offset := range offsets {
		value, err := json.Marshal(clickEvent(id, 1, t0))
		require.NoError(t, err)
		claim.messages <- &sarama.ConsumerMessage{Topic: "clicks", Offset: offset, Value: value}
	}
	if closeAfter {
		close(claim.messages)
	}
	return claim
}

func TestConsumeClaim_FailedWriteMarksNothing(t *testing.T) {
	writer := &flakyWriter{failures: 1}
	handler := &historyHandler{writer: writer, batchSize: 2, batchTimeout: time.Minute}
	id := uuid.New()

	session := &fakeSession{ctx: context.Background()}
	err := handler.ConsumeClaim(session, newClaim(t, []int64{10, 11}, id, false))
	assert.Error(t, err)
	assert.Empty(t, session.markedOffsets())
	assert.Empty(t, writer.written())

	// Redelivery from the last committed offset writes the batch once.
	session = &fakeSession{ctx: context.Background()}
	require.NoError(t, handler.ConsumeClaim(session, newClaim(t, []int64{10, 11}, id, true)))
	assert.Equal(t, []int64{11}, session.markedOffsets())

	rows := writer.written()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ClicksCount)
}

func TestConsumeClaim_ShutdownWithFailedWriteMarksNothing(t *testing.T) {
	writer := &flakyWriter{failures: 1}
	handler := &historyHandler{writer: writer, batchSize: 10, batchTimeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	claim := newClaim(t, []int64{5}, uuid.New(), false)

	done := make(chan error, 1)
	go func() { done <- handler.ConsumeClaim(session, claim) }()

	require.Eventually(t, func() bool { return len(claim.messages) == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ConsumeClaim did not return after cancel")
	}
	assert.Empty(t, session.markedOffsets())
	assert.Empty(t, writer.written())
}

func TestConsumeClaim_InvalidEventsAreMarked(t *testing.T) {
	writer := &flakyWriter{}
	handler := &historyHandler{writer: writer, batchSize: 10, batchTimeout: time.Minute}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte("not json")}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, handler.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{3}, session.markedOffsets())
	assert.Empty(t, writer.written())
}
