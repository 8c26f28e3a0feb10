package models

type EventType string

const (
	EventItemsChanged    EventType = "items"
	EventSolutionChanged EventType = "solution"
	EventStreamChunk     EventType = "stream"
	EventWorking         EventType = "working"
)

// Event is published by the state store after a mutation
type Event struct {
	Type    EventType `json:"type"`
	ItemID  string    `json:"itemId,omitempty"`
	URL     string    `json:"url,omitempty"`
	Chunk   string    `json:"chunk,omitempty"`
	Working bool      `json:"working,omitempty"`
}
