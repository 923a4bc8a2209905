package controller

import (
	"fmt"
	"net/http"

	"go-validator-pool-sync/logger"
	"go-validator-pool-sync/service"
)

type EventsController struct {
	notifier *service.Notifier
	store    ContextReader
}

func NewEventsController(notifier *service.Notifier, store ContextReader) *EventsController {
	return &EventsController{
		notifier: notifier,
		store:    store,
	}
}

type eventData struct {
	Block     uint64 `json:"block"`
	Busy      bool   `json:"busy"`
	Current   uint64 `json:"currentBlockNumber"`
	LastError string `json:"lastError,omitempty"`
}

/*
This handler streams pass notifications as server-sent events until the
client goes away
*/
func (e *EventsController) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming is not supported", http.StatusInternalServerError)
		return
	}
	id, events := e.notifier.Subscribe()
	defer e.notifier.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			view := e.store.View()
			data := eventData{
				Block:     ev.Block,
				Busy:      view.Busy,
				Current:   view.CurrentBlockNumber,
				LastError: view.LastError,
			}
			if ev.Err != nil {
				data.LastError = ev.Err.Error()
			}
			body, err := json.Marshal(data)
			if err != nil {
				logger.LogError(err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
