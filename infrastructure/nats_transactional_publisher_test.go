package infrastructure

import (
	"context"
	"errors"
	"testing"

	"apocaliptyx/domain/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	published []events.Event
	failOn    events.EventType
}

func (r *recordingPublisher) Publish(event events.Event) error {
	if event.Type() == r.failOn {
		return errors.New("publish failed")
	}
	r.published = append(r.published, event)
	return nil
}

func TestNATSTransactionalPublisher_FlushInOrder(t *testing.T) {
	real := &recordingPublisher{}
	pub := NewNATSTransactionalPublisher(real)

	first := events.UserCreatedEvent{UserID: uuid.New(), Username: "a"}
	second := events.ScenarioCreatedEvent{ScenarioID: uuid.New(), Title: "b"}
	require.NoError(t, pub.Publish(first))
	require.NoError(t, pub.Publish(second))

	assert.Empty(t, real.published)
	assert.Equal(t, 2, pub.Pending())

	require.NoError(t, pub.Flush(context.Background()))
	assert.Equal(t, []events.Event{first, second}, real.published)
	assert.Zero(t, pub.Pending())
}

func TestNATSTransactionalPublisher_FlushContinuesAfterFailure(t *testing.T) {
	real := &recordingPublisher{failOn: events.EventTypeUserCreated}
	pub := NewNATSTransactionalPublisher(real)

	require.NoError(t, pub.Publish(events.UserCreatedEvent{UserID: uuid.New()}))
	stolen := events.ScenarioStolenEvent{ScenarioID: uuid.New()}
	require.NoError(t, pub.Publish(stolen))

	require.NoError(t, pub.Flush(context.Background()))
	assert.Equal(t, []events.Event{stolen}, real.published)
}

func TestNATSTransactionalPublisher_Discard(t *testing.T) {
	real := &recordingPublisher{}
	pub := NewNATSTransactionalPublisher(real)

	require.NoError(t, pub.Publish(events.ShieldAppliedEvent{ScenarioID: uuid.New()}))
	pub.Discard()
	require.NoError(t, pub.Flush(context.Background()))

	assert.Empty(t, real.published)
}
