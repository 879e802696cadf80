package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/visiona/framesync/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of synchronized groups, drops, and pipeline lifecycle events",
		Tags:        []string{"events"},
	}, map[string]any{
		"group-synced":     events.GroupSyncedEvent{},
		"message-dropped":  events.MessageDroppedEvent{},
		"pipeline-flushed": events.PipelineFlushedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.GroupSyncedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.MessageDroppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PipelineFlushedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
