package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// ConnectionState is the machine's externally visible state. PreviewLine and
// the anchor fields are nil whenever Mode is ModeIdle; StartNodeID and
// StartAnchor are always set while Mode is ModeDraggingConnection.
type ConnectionState struct {
	Mode           Mode
	StartNodeID    string
	StartAnchor    *Anchor
	CurrentPointer Point
	TargetAnchor   *Anchor
	PreviewLine    *PreviewLine
	SnapDistance   float64
	ShowAnchors    bool
}

// ConnectionCallbacks signal gesture outcomes to the host. Either may be nil.
type ConnectionCallbacks struct {
	OnConnectionCreated func(Edge)
	OnConnectionFailed  func(error)
}

// Messages produced by the machine's async commands. The host routes them
// back through HandleCreateResult / HandleEnrichmentResult.
type edgeCreatedMsg struct{ edge Edge }
type edgeCreateFailedMsg struct{ err error }
type enrichmentAppliedMsg struct {
	edgeID     string
	enrichment Enrichment
}

// ConnectionMachine owns the connect/drag interaction: anchor flags, the
// preview line, and edge-create requests. All methods run on the UI
// goroutine; the returned tea.Cmd values are the only things that leave it.
type ConnectionMachine struct {
	state       ConnectionState
	registry    *AnchorRegistry
	nodes       []Node
	nodeByID    map[string]Node
	transform   Transform
	origin      Point
	workspaceID string
	enabled     bool

	store     Store
	enricher  Enricher
	logger    *zap.Logger
	callbacks ConnectionCallbacks
}

func NewConnectionMachine(workspaceID string, store Store, enricher Enricher, logger *zap.Logger, callbacks ConnectionCallbacks) *ConnectionMachine {
	return &ConnectionMachine{
		state: ConnectionState{
			Mode:         ModeIdle,
			SnapDistance: defaultSnapDistance,
		},
		registry:    NewAnchorRegistry(),
		nodeByID:    make(map[string]Node),
		transform:   Transform{Scale: 1},
		workspaceID: workspaceID,
		enabled:     true,
		store:       store,
		enricher:    enricher,
		logger:      logger,
		callbacks:   callbacks,
	}
}

func (m *ConnectionMachine) State() ConnectionState {
	return m.state
}

func (m *ConnectionMachine) Anchors() []Anchor {
	return m.registry.All()
}

func (m *ConnectionMachine) SetEnabled(enabled bool) {
	m.enabled = enabled
	if !enabled {
		m.ExitConnectMode()
	}
}

// UpdateNodes replaces the machine's view of the canvas and regenerates all
// anchors. During an active drag the start/target anchors are re-resolved by
// id so the preview line stays glued to moving nodes; if an anchor's node was
// deleted mid-drag the last known coordinates are kept.
func (m *ConnectionMachine) UpdateNodes(nodes []Node) {
	m.nodes = append(m.nodes[:0], nodes...)
	clear(m.nodeByID)
	for _, n := range nodes {
		m.nodeByID[n.ID] = n
	}
	m.registry.Rebuild(m.nodes)

	if m.state.Mode != ModeDraggingConnection {
		return
	}
	if m.state.StartAnchor != nil {
		if a := m.registry.Get(m.state.StartAnchor.ID); a != nil {
			a.IsActive = true
			copied := *a
			m.state.StartAnchor = &copied
		}
	}
	if m.state.TargetAnchor != nil {
		if a := m.registry.Get(m.state.TargetAnchor.ID); a != nil {
			a.IsHighlighted = true
			copied := *a
			m.state.TargetAnchor = &copied
		}
	}
	m.refreshPreview()
}

func (m *ConnectionMachine) UpdateTransform(t Transform) {
	m.transform = t.Clamped()
}

func (m *ConnectionMachine) SetOrigin(origin Point) {
	m.origin = origin
}

// ToggleConnectMode flips between idle and connecting.
func (m *ConnectionMachine) ToggleConnectMode() {
	if m.state.Mode == ModeIdle {
		m.EnterConnectMode()
	} else {
		m.ExitConnectMode()
	}
}

// EnterConnectMode arms connection creation. A no-op unless the machine is
// enabled and at least two nodes exist (there is nothing to connect
// otherwise).
func (m *ConnectionMachine) EnterConnectMode() {
	if !m.enabled || m.state.Mode != ModeIdle || len(m.nodes) < 2 {
		return
	}
	m.state.Mode = ModeConnecting
	m.state.ShowAnchors = true
}

// ExitConnectMode returns to idle from any mode, clearing every transient
// field and all anchor flags.
func (m *ConnectionMachine) ExitConnectMode() {
	m.resetTransients()
	m.state.Mode = ModeIdle
	m.state.ShowAnchors = false
}

// HandleKeyDown processes the machine's keyboard surface: unmodified c/C
// toggles connect mode, escape exits any non-idle mode. Returns whether the
// key was consumed.
func (m *ConnectionMachine) HandleKeyDown(key string) bool {
	switch key {
	case "c", "C":
		m.ToggleConnectMode()
		return true
	case "esc", "escape":
		if m.state.Mode == ModeIdle {
			return false
		}
		m.ExitConnectMode()
		return true
	}
	return false
}

// HandleNodeMouseDown starts a connection drag from the pressed node if the
// pointer is within snap distance of one of its anchors. Returns false when
// the press is not handled, so the caller can fall back to plain node
// selection; the mode is unchanged in that case.
func (m *ConnectionMachine) HandleNodeMouseDown(nodeID string, screen Point) bool {
	if m.state.Mode != ModeConnecting {
		return false
	}
	p := screenToCanvas(screen, m.origin, m.transform)
	anchor := m.registry.NearestForNode(nodeID, p, m.state.SnapDistance)
	if anchor == nil {
		return false
	}
	anchor.IsActive = true
	copied := *anchor
	m.state.Mode = ModeDraggingConnection
	m.state.StartNodeID = nodeID
	m.state.StartAnchor = &copied
	m.state.TargetAnchor = nil
	m.state.CurrentPointer = p
	m.state.PreviewLine = &PreviewLine{From: copied.Position, To: p}
	return true
}

// HandleMouseMove tracks the pointer during a connection drag: it recomputes
// the nearest anchor excluding the start node, moves the highlight, and
// snaps the preview line to the target anchor when one is in range.
func (m *ConnectionMachine) HandleMouseMove(screen Point) {
	if m.state.Mode != ModeDraggingConnection {
		return
	}
	p := screenToCanvas(screen, m.origin, m.transform)
	m.state.CurrentPointer = p

	if m.state.TargetAnchor != nil {
		if prev := m.registry.Get(m.state.TargetAnchor.ID); prev != nil {
			prev.IsHighlighted = false
		}
		m.state.TargetAnchor = nil
	}
	if target := m.registry.Nearest(p, m.state.StartNodeID, m.state.SnapDistance); target != nil {
		target.IsHighlighted = true
		copied := *target
		m.state.TargetAnchor = &copied
	}
	m.refreshPreview()
}

// HandleMouseUp completes a connection drag. With a valid target on another
// node it resets to connecting immediately and returns a command that issues
// the edge-create request; a self-connection is rejected without any request.
// In every outcome the transient fields are cleared and the mode returns to
// connecting, so a failed create can never strand the machine mid-drag.
func (m *ConnectionMachine) HandleMouseUp() tea.Cmd {
	if m.state.Mode != ModeDraggingConnection {
		return nil
	}
	startNodeID := m.state.StartNodeID
	target := m.state.TargetAnchor

	m.resetTransients()
	m.state.Mode = ModeConnecting

	if target == nil {
		return nil
	}
	if target.NodeID == startNodeID {
		m.fail(ErrSelfConnection)
		return nil
	}
	return m.createEdgeCmd(CreateEdgeRequest{
		FromNodeID: startNodeID,
		ToNodeID:   target.NodeID,
		Type:       EdgeTypeRelated,
	})
}

// HandleCreateResult consumes the message produced by a createEdgeCmd. On
// success it signals OnConnectionCreated and returns the best-effort
// enrichment command; on failure it signals OnConnectionFailed. The mode was
// already reset on pointer-up, so nothing here touches interaction state.
func (m *ConnectionMachine) HandleCreateResult(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case edgeCreatedMsg:
		if m.callbacks.OnConnectionCreated != nil {
			m.callbacks.OnConnectionCreated(msg.edge)
		}
		return m.enrichCmd(msg.edge)
	case edgeCreateFailedMsg:
		m.logger.Warn("edge create failed", zap.Error(msg.err))
		m.fail(msg.err)
	}
	return nil
}

func (m *ConnectionMachine) createEdgeCmd(req CreateEdgeRequest) tea.Cmd {
	store := m.store
	workspaceID := m.workspaceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		edge, err := store.CreateEdge(ctx, workspaceID, req)
		if err != nil {
			return edgeCreateFailedMsg{err: err}
		}
		return edgeCreatedMsg{edge: *edge}
	}
}

// enrichCmd fires the AI summary request for a created edge. Failures are
// logged and swallowed: enrichment never blocks or rolls back the edge.
func (m *ConnectionMachine) enrichCmd(edge Edge) tea.Cmd {
	if m.enricher == nil {
		return nil
	}
	rc := RelationshipContext{
		FromNodeID: edge.FromNodeID,
		ToNodeID:   edge.ToNodeID,
		FromLabel:  m.nodeByID[edge.FromNodeID].Label,
		ToLabel:    m.nodeByID[edge.ToNodeID].Label,
		Context:    edge.Description,
	}
	enricher := m.enricher
	store := m.store
	logger := m.logger
	workspaceID := m.workspaceID
	return func() tea.Msg {
		enr, err := enricher.SummarizeRelationship(context.Background(), workspaceID, rc)
		if err != nil {
			logger.Warn("relationship enrichment failed",
				zap.String("edge_id", edge.ID),
				zap.Error(err))
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.UpdateEdgeEnrichment(ctx, workspaceID, edge.ID, *enr); err != nil {
			logger.Warn("failed to persist enrichment",
				zap.String("edge_id", edge.ID),
				zap.Error(err))
			return nil
		}
		return enrichmentAppliedMsg{edgeID: edge.ID, enrichment: *enr}
	}
}

func (m *ConnectionMachine) fail(err error) {
	if m.callbacks.OnConnectionFailed != nil {
		m.callbacks.OnConnectionFailed(err)
	}
}

func (m *ConnectionMachine) refreshPreview() {
	if m.state.Mode != ModeDraggingConnection || m.state.StartAnchor == nil {
		return
	}
	to := m.state.CurrentPointer
	if m.state.TargetAnchor != nil {
		to = m.state.TargetAnchor.Position
	}
	m.state.PreviewLine = &PreviewLine{From: m.state.StartAnchor.Position, To: to}
}

func (m *ConnectionMachine) resetTransients() {
	m.state.StartNodeID = ""
	m.state.StartAnchor = nil
	m.state.TargetAnchor = nil
	m.state.PreviewLine = nil
	m.state.CurrentPointer = Point{}
	m.registry.ClearFlags()
}
