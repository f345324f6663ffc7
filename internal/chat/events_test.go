package chat

import (
	"testing"

	"github.com/Arceliar/phony"
	"github.com/stretchr/testify/assert"
)

func TestEventBusOrderAndUnsubscribe(t *testing.T) {
	bus := newEventBus()
	var got []string
	unsubscribeFirst := bus.subscribe(func(e Event) { got = append(got, "first:"+e.PeerID) })
	bus.subscribe(func(e Event) { got = append(got, "second:"+e.PeerID) })

	bus.emit(Event{Type: EventTyping, PeerID: "a"})
	unsubscribeFirst()
	// 取消后立即发出的事件不再回调
	bus.emit(Event{Type: EventTyping, PeerID: "b"})
	unsubscribeFirst()
	phony.Block(bus, func() {})

	assert.Equal(t, []string{"first:a", "second:a", "second:b"}, got)
}
