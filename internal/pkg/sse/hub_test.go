package sse_test

import (
	"testing"

	"github.com/cmlabs-hris/attendance-sync/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishIsScopedToCompany(t *testing.T) {
	hub := sse.NewHub()
	c1, cleanup1 := hub.Subscribe("C1")
	defer cleanup1()
	c2, cleanup2 := hub.Subscribe("C2")
	defer cleanup2()

	hub.Publish(sse.Event{CompanyID: "C1", Event: "sync.completed", Data: 1})

	require.Len(t, c1, 1)
	assert.Equal(t, "sync.completed", (<-c1).Event)
	assert.Empty(t, c2)
}

func TestHub_FullSubscriberDoesNotBlock(t *testing.T) {
	hub := sse.NewHub()
	ch, cleanup := hub.Subscribe("C1")
	defer cleanup()

	for i := 0; i < 100; i++ {
		hub.Publish(sse.Event{CompanyID: "C1", Event: "sync.completed", Data: i})
	}
	assert.Equal(t, cap(ch), len(ch))
}

func TestHub_Cleanup(t *testing.T) {
	hub := sse.NewHub()
	ch, cleanup := hub.Subscribe("C1")
	assert.Equal(t, 1, hub.SubscriberCount("C1"))

	cleanup()
	cleanup()

	assert.Zero(t, hub.SubscriberCount("C1"))
	_, open := <-ch
	assert.False(t, open)

	hub.Publish(sse.Event{CompanyID: "C1", Event: "sync.failed"})
}
