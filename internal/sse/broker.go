// Package sse streams sync progress to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/wssync/internal/models"
)

// Event names.
const (
	EventSyncCompleted    = "sync.completed"
	EventSyncFailed       = "sync.failed"
	EventWorkspaceUpdated = "workspace.updated"
	EventCatalogueUpdated = "catalogue.updated"
)

const (
	clientBuffer = 64
	// KeepAlive is how often an idle stream receives a comment line so
	// proxies do not drop it.
	KeepAlive = 15 * time.Second
)

// RunSummary is the payload of a sync.completed event.
type RunSummary struct {
	Workspaces int       `json:"workspaces"`
	Copied     int       `json:"copied"`
	Rebuilt    bool      `json:"rebuilt"`
	DryRun     bool      `json:"dry_run"`
	FinishedAt time.Time `json:"finished_at"`
}

// WorkspaceUpdate is the payload of a workspace.updated event.
type WorkspaceUpdate struct {
	Workspace string   `json:"workspace"`
	Files     []string `json:"files"`
}

type runEvent struct {
	res models.RunResult
	err error
}

// Broker fans run outcomes out to connected SSE clients.
//
// One goroutine owns the client set, the event counter and the catalogue
// throttle; every public method talks to it over channels.
type Broker struct {
	catalogueMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	runCh         chan runEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. catalogue.updated is sent at most once per
// catalogueThrottle.
func NewBroker(catalogueThrottle time.Duration) *Broker {
	if catalogueThrottle <= 0 {
		catalogueThrottle = 2 * time.Second
	}

	b := &Broker{
		catalogueMin:  catalogueThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		runCh:         make(chan runEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.loop()
	return b
}

// frame renders one event in text/event-stream format.
func frame(id uint64, name string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	buf := make([]byte, 0, len(payload)+len(name)+32)
	buf = append(buf, "id: "...)
	buf = strconv.AppendUint(buf, id, 10)
	buf = append(buf, "\nevent: "...)
	buf = append(buf, name...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, payload...)
	return append(buf, "\n\n"...)
}

// workspaceUpdates groups copied files by workspace, keeping run order.
func workspaceUpdates(copied []models.FileEntry) []WorkspaceUpdate {
	var out []WorkspaceUpdate
	index := make(map[string]int)
	for _, fe := range copied {
		i, ok := index[fe.Workspace]
		if !ok {
			i = len(out)
			index[fe.Workspace] = i
			out = append(out, WorkspaceUpdate{Workspace: fe.Workspace})
		}
		out[i].Files = append(out[i].Files, fe.Path)
	}
	return out
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq           uint64
		lastCatalogue time.Time
	)

	send := func(name string, data any) {
		seq++
		msg := frame(seq, name, data)
		if msg == nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// Slow client; it misses this event.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.runCh:
			if ev.err != nil {
				send(EventSyncFailed, map[string]string{"error": ev.err.Error()})
				continue
			}
			res := ev.res
			for _, u := range workspaceUpdates(res.Copied) {
				send(EventWorkspaceUpdated, u)
			}
			send(EventSyncCompleted, RunSummary{
				Workspaces: len(res.Workspaces),
				Copied:     len(res.Copied),
				Rebuilt:    res.Rebuilt,
				DryRun:     res.DryRun,
				FinishedAt: res.FinishedAt,
			})
			if !res.Rebuilt {
				continue
			}
			if now := time.Now(); now.Sub(lastCatalogue) >= b.catalogueMin {
				lastCatalogue = now
				send(EventCatalogueUpdated, map[string]int{"entries": len(res.Entries)})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker and closes every client channel. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishRun reports a finished pass. A failed pass yields sync.failed.
// A successful one yields one workspace.updated per workspace that received
// files, then sync.completed, then catalogue.updated when the catalogue was
// rebuilt and the throttle allows it.
func (b *Broker) PublishRun(res models.RunResult, err error) {
	if b.closed.Load() {
		return
	}
	select {
	case b.runCh <- runEvent{res: res, err: err}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: 3000\n\n"))
	if err := rc.Flush(); err != nil {
		return
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(KeepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
