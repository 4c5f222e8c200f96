// Package events provides a unified pub/sub event bus for nftgraph.
// Graph edits and compile outcomes flow through this hub so the CLI and
// embedding frontends can observe the engine without polling it.
package events

import "time"

// EventType identifies the category of event.
type EventType string

// Event types for graph editing and compilation.
const (
	// Graph edit events
	EventNodeAdded    EventType = "graph.node_added"
	EventNodeRemoved  EventType = "graph.node_removed"
	EventNodeMoved    EventType = "graph.node_moved"
	EventConnected    EventType = "graph.connected"
	EventDisconnected EventType = "graph.disconnected"
	EventCycleReject  EventType = "graph.cycle_rejected"

	// Compilation events
	EventPathsCollected EventType = "compile.paths_collected"
	EventPathSkipped    EventType = "compile.path_skipped"
	EventExportDone     EventType = "compile.export_done"

	// Plugin events
	EventPluginImported EventType = "plugin.imported"
	EventPluginInvoked  EventType = "plugin.invoked"
)

// Event is the core message passed through the event bus.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"` // Component that emitted: "graph", "eval", "nft", "plugin"
	Data      interface{} `json:"data"`   // Type-specific payload
}

// ──────────────────────────────────────────────────────────────────────────────
// Type-Specific Payloads
// ──────────────────────────────────────────────────────────────────────────────

// NodeData is the payload for node add/remove/move events.
type NodeData struct {
	Node  string  `json:"node"`
	Kind  string  `json:"kind"`
	Label string  `json:"label,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// ConnectionData is the payload for connect/disconnect/cycle events.
type ConnectionData struct {
	FromNode string `json:"from_node"`
	Output   string `json:"output"`
	ToNode   string `json:"to_node"`
	Input    string `json:"input"`
}

// CollectData is the payload for EventPathsCollected.
type CollectData struct {
	Paths   int `json:"paths"`
	Skipped int `json:"skipped"`
}

// PathSkipData is the payload for EventPathSkipped.
type PathSkipData struct {
	Node   string `json:"node"`
	Reason string `json:"reason"`
}

// ExportData is the payload for EventExportDone.
type ExportData struct {
	Table   string `json:"table"`
	Objects int    `json:"objects"`
	Skipped int    `json:"skipped"`
}

// PluginData is the payload for plugin events.
type PluginData struct {
	Plugin string `json:"plugin"`
	Node   string `json:"node,omitempty"`
	Branch string `json:"branch,omitempty"`
}
