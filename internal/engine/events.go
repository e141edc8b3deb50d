package engine

import (
	"sync"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
)

// Progress event kinds.
const (
	EventItemStarted  = "item_started"
	EventItemFinished = "item_finished"
	EventJobStatus    = "job_status"
)

// ProgressEvent is one entry of a job's progress stream. Seq is monotonic per
// job; consumers detect dropped events by a gap in Seq.
type ProgressEvent struct {
	Seq       int64         `json:"seq"`
	JobID     string        `json:"job_id"`
	Event     string        `json:"event"`
	ItemID    string        `json:"item_id,omitempty"`
	Status    string        `json:"status,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Progress  jobs.Progress `json:"progress"`
	Terminal  bool          `json:"terminal,omitempty"`
	At        time.Time     `json:"at"`
}

// eventHub fans progress events out to per-job subscribers. Sends never
// block: a subscriber whose buffer is full loses the event and sees the gap
// in Seq.
type eventHub struct {
	buffer int

	mu      sync.Mutex
	streams map[string]*jobStream
}

type jobStream struct {
	seq    int64
	nextID int64
	subs   map[int64]chan ProgressEvent
}

func newEventHub(buffer int) *eventHub {
	if buffer <= 0 {
		buffer = 64
	}
	return &eventHub{buffer: buffer, streams: make(map[string]*jobStream)}
}

// Subscribe registers a listener for one job. The returned cancel func is
// idempotent and must be called when the consumer goes away.
func (h *eventHub) Subscribe(jobID string) (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream, ok := h.streams[jobID]
	if !ok {
		stream = &jobStream{subs: make(map[int64]chan ProgressEvent)}
		h.streams[jobID] = stream
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan ProgressEvent, h.buffer)
	stream.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if stream, ok := h.streams[jobID]; ok {
				if ch, ok := stream.subs[id]; ok {
					delete(stream.subs, id)
					close(ch)
				}
			}
		})
	}
	return ch, cancel
}

// Publish stamps the event with the job's next sequence number and delivers
// it to every subscriber. Terminal events close the stream afterwards.
func (h *eventHub) Publish(event ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream, ok := h.streams[event.JobID]
	if !ok {
		if event.Terminal {
			return
		}
		stream = &jobStream{subs: make(map[int64]chan ProgressEvent)}
		h.streams[event.JobID] = stream
	}
	stream.seq++
	event.Seq = stream.seq
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	for _, ch := range stream.subs {
		select {
		case ch <- event:
		default:
		}
	}

	if event.Terminal {
		for id, ch := range stream.subs {
			delete(stream.subs, id)
			close(ch)
		}
		delete(h.streams, event.JobID)
	}
}
