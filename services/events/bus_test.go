package eventsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/evidencehub/core"
)

func TestBus_Publish(t *testing.T) {
	bus := NewBus(core.NopLogger{})
	ctx := context.Background()

	var got []string
	bus.Subscribe(func(_ context.Context, evt core.Event) { got = append(got, "all:"+string(evt.Type)) })
	bus.Subscribe(func(context.Context, core.Event) { panic("boom") })
	bus.Subscribe(
		func(_ context.Context, evt core.Event) { got = append(got, "gateway:"+evt.StudentID) },
		core.EventGatewayPassed,
	)

	bus.Publish(ctx, core.Event{Type: core.EventSamplingCreated, StudentID: "stu-1"})
	bus.Publish(ctx, core.Event{Type: core.EventGatewayPassed, StudentID: "stu-1"})

	assert.Equal(t, []string{
		"all:sampling.created",
		"all:gateway.passed",
		"gateway:stu-1",
	}, got, "delivered in order, a panicking subscriber does not stop the others")
}
