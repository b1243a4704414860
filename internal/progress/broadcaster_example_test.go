package progress

import (
	"context"
	"fmt"
)

// ExampleBroadcaster_Publish demonstrates delivering a snapshot to a listener.
func ExampleBroadcaster_Publish() {
	type queueState struct{ Len int }

	b := New[queueState](Config{Name: "scheduler"})
	var last queueState
	b.Register(ListenerFunc[queueState](func(_ context.Context, s queueState) error {
		last = s
		return nil
	}))

	b.Publish(queueState{Len: 3})
	if err := b.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("queue length: %d\n", last.Len)
	// Output:
	// queue length: 3
}
