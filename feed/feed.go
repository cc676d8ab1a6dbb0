// Package feed implements the console event feed: a fan-out channel that
// delivers output chunks and control events from the job runner to every
// live observer.
//
// The feed keeps no backlog. An observer that subscribes after an event was
// published never sees it, and an observer that cannot keep up loses events
// rather than stalling the publisher - the process pipe must never block on
// a slow WebSocket client.
package feed

import (
	"sync"
)

// SubscriberBufferSize is the buffer size for subscriber channels.
const SubscriberBufferSize = 256

// Kind discriminates console events on the wire.
type Kind string

const (
	// KindOutput carries a chunk of decoded process output.
	KindOutput Kind = "console_output"
	// KindClear tells observers to reset their console before a new job.
	KindClear Kind = "console_clear"
	// KindArtifactReady announces a downloadable result artifact.
	KindArtifactReady Kind = "artifact_ready"
)

// Event is a single console event. The JSON shape is the wire format sent
// to WebSocket clients.
type Event struct {
	Kind Kind   `json:"type"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Output builds a console output event carrying text.
func Output(text string) Event {
	return Event{Kind: KindOutput, Data: text}
}

// Clear builds a console clear event.
func Clear() Event {
	return Event{Kind: KindClear}
}

// ArtifactReady builds an artifact announcement carrying an opaque locator.
// The transport layer resolves the locator to a downloadable resource.
func ArtifactReady(locator string) Event {
	return Event{Kind: KindArtifactReady, URL: locator}
}

// Feed fans events out to subscribers.
type Feed struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

// New creates an empty feed.
func New() *Feed {
	return &Feed{
		subscribers: make([]chan Event, 0),
	}
}

// Subscribe returns a channel that receives published events.
// The caller is responsible for calling Unsubscribe when done.
// The returned channel is buffered to prevent blocking the publisher.
func (f *Feed) Subscribe() chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, SubscriberBufferSize)
	f.subscribers = append(f.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the feed.
// The channel is NOT closed by this method - callers should close it
// themselves after unsubscribing if needed. This prevents double-close
// panics when a publish races with the unsubscribe.
func (f *Feed) Unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, sub := range f.subscribers {
		if sub == ch {
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every current subscriber.
// Returns the number of subscribers that accepted the event (channel not
// full). Uses non-blocking sends so a stalled subscriber drops events
// instead of stalling the publisher.
func (f *Feed) Publish(ev Event) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sent := 0
	for _, ch := range f.subscribers {
		select {
		case ch <- ev:
			sent++
		default:
			// Channel full - skip
		}
	}
	return sent
}

// Subscribers returns the current observer count.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}
