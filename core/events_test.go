package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroker_PublishSubscribe(t *testing.T) {
	broker := NewBroker()

	ch1, cancel1 := broker.Subscribe(TopicCoursesUpdated)
	defer cancel1()
	ch2, cancel2 := broker.Subscribe(TopicCoursesUpdated)
	defer cancel2()

	broker.Publish(TopicCoursesUpdated)

	assert.Equal(t, Event{Topic: TopicCoursesUpdated}, <-ch1)
	assert.Equal(t, Event{Topic: TopicCoursesUpdated}, <-ch2)

	select {
	case evt := <-ch1:
		t.Errorf("unexpected extra event: %+v", evt)
	default:
	}
}

func TestBroker_topicsAreIndependent(t *testing.T) {
	broker := NewBroker()

	ch, cancel := broker.Subscribe("other_topic")
	defer cancel()

	broker.Publish(TopicCoursesUpdated)

	select {
	case evt := <-ch:
		t.Errorf("received event from a foreign topic: %+v", evt)
	default:
	}
}

func TestBroker_cancelClosesChannel(t *testing.T) {
	broker := NewBroker()

	ch, cancel := broker.Subscribe(TopicCoursesUpdated)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic on the closed channel
	broker.Publish(TopicCoursesUpdated)
	cancel() // idempotent
}

func TestBroker_publishNeverBlocks(t *testing.T) {
	broker := NewBroker()

	ch, cancel := broker.Subscribe(TopicCoursesUpdated)
	defer cancel()

	// nobody reads; overflow past the buffer is dropped
	for i := 0; i < 20; i++ {
		broker.Publish(TopicCoursesUpdated)
	}
	assert.Equal(t, cap(ch), len(ch))
}
