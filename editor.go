package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type editorMode int

const (
	editorNormal editorMode = iota
	editorLabelInput
	editorConfirm
)

type dragKind int

const (
	dragNone dragKind = iota
	dragMoveNode
	dragPan
	dragConnection
)

type confirmAction int

const (
	confirmDeleteNode confirmAction = iota
	confirmDeleteEdge
	confirmQuit
)

// canvasState is the live document: committed node/edge lists plus the
// uncommitted position of a node mid-drag. It is shared by pointer across
// model copies, the render loop and the machine callbacks.
type canvasState struct {
	nodes     []Node
	edges     []Edge
	transform Transform
	liveNode  string
	livePos   Point
}

func (c *canvasState) node(id string) (Node, bool) {
	for _, n := range c.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// displayNodes is the committed list with the live drag position substituted.
func (c *canvasState) displayNodes() []Node {
	if c.liveNode == "" {
		return c.nodes
	}
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	for i := range out {
		if out[i].ID == c.liveNode {
			out[i].X = c.livePos.X
			out[i].Y = c.livePos.Y
		}
	}
	return out
}

// nodeAt returns the topmost node containing the canvas-space point.
func (c *canvasState) nodeAt(p Point) (Node, bool) {
	nodes := c.displayNodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Contains(p) {
			return nodes[i], true
		}
	}
	return Node{}, false
}

func (c *canvasState) setLive(nodeID string, pos Point) {
	c.liveNode = nodeID
	c.livePos = pos
}

func (c *canvasState) clearLive() {
	c.liveNode = ""
}

// eventSink collects machine callback output for the status bar.
type eventSink struct {
	status  string
	errText string
}

// Store result messages.
type workspaceLoadedMsg struct {
	nodes []Node
	edges []Edge
	err   error
}
type nodeCreatedMsg struct {
	node *Node
	err  error
}
type nodePositionCommittedMsg struct{ err error }
type nodeDeletedMsg struct {
	nodeID string
	err    error
}
type edgeDeletedMsg struct {
	edgeID string
	err    error
}
type labelUpdatedMsg struct {
	nodeID string
	label  string
	err    error
}
type exportDoneMsg struct {
	path string
	err  error
}

type editor struct {
	width  int
	height int

	workspaceID string
	store       Store
	logger      *zap.Logger
	config      *Config

	doc     *canvasState
	machine *ConnectionMachine
	loop    *RenderSyncLoop
	edges   *EdgeRenderer
	sink    *eventSink

	mode          editorMode
	confirmWhat   confirmAction
	confirmTarget string

	inputText   string
	inputPos    Point
	inputNodeID string

	selectedNode  string
	drag          *DragSession
	dragKind      dragKind
	dragNodeStart Point
	panStart      Transform
	lastMouse     Point

	help bool
}

func newEditor(config *Config, store Store, enricher Enricher, logger *zap.Logger, workspaceID string) editor {
	doc := &canvasState{transform: Transform{Scale: 1}}
	sink := &eventSink{}

	machine := NewConnectionMachine(workspaceID, store, enricher, logger, ConnectionCallbacks{
		OnConnectionCreated: func(e Edge) {
			sink.status = "connected"
			sink.errText = ""
		},
		OnConnectionFailed: func(err error) {
			sink.errText = "connection failed: " + err.Error()
		},
	})

	loop := NewRenderSyncLoop(logger, func(nodeID string, pos Point) {
		if nodeID != "" {
			doc.setLive(nodeID, pos)
		}
		machine.UpdateNodes(doc.displayNodes())
	})

	return editor{
		workspaceID: workspaceID,
		store:       store,
		logger:      logger,
		config:      config,
		doc:         doc,
		machine:     machine,
		loop:        loop,
		edges:       NewEdgeRenderer(GestureDraggingConnection, GestureMovingNode, GesturePanning),
		sink:        sink,
	}
}

func (m editor) Init() tea.Cmd {
	return m.loadWorkspaceCmd()
}

func (m editor) loadWorkspaceCmd() tea.Cmd {
	store := m.store
	workspaceID := m.workspaceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		nodes, err := store.ListNodes(ctx, workspaceID)
		if err != nil {
			return workspaceLoadedMsg{err: err}
		}
		edges, err := store.ListEdges(ctx, workspaceID)
		if err != nil {
			return workspaceLoadedMsg{err: err}
		}
		return workspaceLoadedMsg{nodes: nodes, edges: edges}
	}
}

// gestureMode maps the machine mode and any editor-side gesture onto the
// renderer's view of the world.
func (m editor) gestureMode() GestureMode {
	switch m.machine.State().Mode {
	case ModeDraggingConnection:
		return GestureDraggingConnection
	case ModeConnecting:
		return GestureConnecting
	}
	if m.drag != nil && m.drag.Confirmed() {
		switch m.dragKind {
		case dragMoveNode:
			return GestureMovingNode
		case dragPan:
			return GesturePanning
		}
	}
	return GestureNone
}

func (m editor) activeNodeID() string {
	if m.drag != nil && m.dragKind == dragMoveNode {
		return m.drag.NodeID
	}
	return ""
}

func (m editor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case frameMsg:
		return m, m.loop.HandleFrame(msg)

	case workspaceLoadedMsg:
		if msg.err != nil {
			m.sink.errText = "load failed: " + msg.err.Error()
			return m, nil
		}
		m.doc.nodes = msg.nodes
		m.doc.edges = msg.edges
		m.machine.UpdateNodes(m.doc.displayNodes())
		return m, nil

	case edgeCreatedMsg:
		m.doc.edges = append(m.doc.edges, msg.edge)
		return m, m.machine.HandleCreateResult(msg)

	case edgeCreateFailedMsg:
		return m, m.machine.HandleCreateResult(msg)

	case enrichmentAppliedMsg:
		for i := range m.doc.edges {
			if m.doc.edges[i].ID == msg.edgeID {
				m.doc.edges[i].AISummary = msg.enrichment.AISummary
				m.doc.edges[i].Strength = msg.enrichment.RelationshipStrength
			}
		}
		return m, nil

	case nodeCreatedMsg:
		if msg.err != nil {
			m.sink.errText = "add node failed: " + msg.err.Error()
			return m, nil
		}
		m.doc.nodes = append(m.doc.nodes, *msg.node)
		m.machine.UpdateNodes(m.doc.displayNodes())
		m.selectedNode = msg.node.ID
		return m, nil

	case nodePositionCommittedMsg:
		if msg.err != nil {
			m.sink.errText = "move failed: " + msg.err.Error()
		}
		return m, nil

	case nodeDeletedMsg:
		if msg.err != nil {
			m.sink.errText = "delete failed: " + msg.err.Error()
			return m, nil
		}
		m.removeNodeLocally(msg.nodeID)
		return m, nil

	case edgeDeletedMsg:
		if msg.err != nil {
			m.sink.errText = "delete failed: " + msg.err.Error()
			return m, nil
		}
		edges := m.doc.edges[:0]
		for _, e := range m.doc.edges {
			if e.ID != msg.edgeID {
				edges = append(edges, e)
			}
		}
		m.doc.edges = edges
		m.sink.status = "edge deleted"
		return m, nil

	case labelUpdatedMsg:
		if msg.err != nil {
			m.sink.errText = "rename failed: " + msg.err.Error()
			return m, nil
		}
		for i := range m.doc.nodes {
			if m.doc.nodes[i].ID == msg.nodeID {
				m.doc.nodes[i].Label = msg.label
			}
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.sink.errText = "export failed: " + msg.err.Error()
		} else {
			m.sink.status = "exported " + msg.path
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m editor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.help {
		m.help = false
		return m, nil
	}

	switch m.mode {
	case editorLabelInput:
		return m.handleLabelInputKey(msg)
	case editorConfirm:
		return m.handleConfirmKey(msg)
	}

	key := msg.String()

	// The connection machine gets first refusal on its keyboard surface.
	if m.machine.HandleKeyDown(key) {
		if m.machine.State().Mode == ModeIdle {
			// Leaving connect mode cancels any in-flight gesture loop
			// before the next gesture may start one.
			m.loop.Cancel()
			m.drag = nil
			m.dragKind = dragNone
		}
		return m, nil
	}

	switch key {
	case "ctrl+c", "q":
		if !m.config.Confirmations {
			return m, tea.Quit
		}
		m.mode = editorConfirm
		m.confirmWhat = confirmQuit
		return m, nil
	case "?":
		m.help = true
		return m, nil
	case "a":
		m.cancelConnectionGesture()
		m.mode = editorLabelInput
		m.inputText = ""
		m.inputNodeID = ""
		m.inputPos = screenToCanvas(m.lastMouse, Point{}, m.doc.transform)
		m.machine.SetEnabled(false)
		return m, nil
	case "e":
		if n, ok := m.doc.node(m.selectedNode); ok {
			m.cancelConnectionGesture()
			m.mode = editorLabelInput
			m.inputText = n.Label
			m.inputNodeID = n.ID
			m.machine.SetEnabled(false)
		}
		return m, nil
	case "d":
		if m.selectedNode == "" {
			return m, nil
		}
		if !m.config.Confirmations {
			return m, m.deleteNodeCmd(m.selectedNode)
		}
		m.mode = editorConfirm
		m.confirmWhat = confirmDeleteNode
		m.confirmTarget = m.selectedNode
		return m, nil
	case "y":
		if n, ok := m.doc.node(m.selectedNode); ok {
			if err := writeClipboardText(n.Label); err == nil {
				m.sink.status = "copied"
			}
		}
		return m, nil
	case "p":
		text, err := readClipboardText()
		if err != nil || text == "" {
			return m, nil
		}
		p := screenToCanvas(m.lastMouse, Point{}, m.doc.transform)
		return m, m.createNodeCmd(firstLine(text), p)
	case "E":
		return m, m.exportCmd()
	case "+", "=":
		m.applyZoom(1.25)
		return m, nil
	case "-":
		m.applyZoom(1 / 1.25)
		return m, nil
	case "0":
		m.doc.transform = Transform{Scale: 1}
		m.machine.UpdateTransform(m.doc.transform)
		return m, nil
	case "h", "left":
		m.applyPan(panStep, 0)
		return m, nil
	case "l", "right":
		m.applyPan(-panStep, 0)
		return m, nil
	case "k", "up":
		m.applyPan(0, panStep)
		return m, nil
	case "j", "down":
		m.applyPan(0, -panStep)
		return m, nil
	case "esc", "escape":
		m.selectedNode = ""
		return m, nil
	}
	return m, nil
}

func (m editor) handleLabelInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEscape:
		m.mode = editorNormal
		m.inputText = ""
		m.inputNodeID = ""
		m.machine.SetEnabled(true)
		return m, nil
	case msg.Type == tea.KeyEnter:
		text := m.inputText
		nodeID := m.inputNodeID
		pos := m.inputPos
		m.mode = editorNormal
		m.inputText = ""
		m.inputNodeID = ""
		m.machine.SetEnabled(true)
		if text == "" {
			return m, nil
		}
		if nodeID != "" {
			return m, m.updateLabelCmd(nodeID, text)
		}
		return m, m.createNodeCmd(text, pos)
	case msg.Type == tea.KeyBackspace:
		if len(m.inputText) > 0 {
			m.inputText = m.inputText[:len(m.inputText)-1]
		}
		return m, nil
	default:
		if key := msg.String(); len(key) == 1 {
			m.inputText += key
		} else if msg.Type == tea.KeySpace {
			m.inputText += " "
		}
		return m, nil
	}
}

func (m editor) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.mode = editorNormal
		switch m.confirmWhat {
		case confirmQuit:
			return m, tea.Quit
		case confirmDeleteNode:
			return m, m.deleteNodeCmd(m.confirmTarget)
		case confirmDeleteEdge:
			return m, m.deleteEdgeCmd(m.confirmTarget)
		}
		return m, nil
	default:
		m.mode = editorNormal
		m.confirmTarget = ""
		return m, nil
	}
}

func (m editor) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	screen := Point{X: float64(msg.X) * cellWidth, Y: float64(msg.Y) * cellHeight}
	m.lastMouse = screen

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			return m.handleMousePress(screen)
		case tea.MouseButtonWheelUp:
			m.doc.transform = zoomAt(m.doc.transform, Point{}, screen, 1.1)
			m.machine.UpdateTransform(m.doc.transform)
			return m, nil
		case tea.MouseButtonWheelDown:
			m.doc.transform = zoomAt(m.doc.transform, Point{}, screen, 1/1.1)
			m.machine.UpdateTransform(m.doc.transform)
			return m, nil
		}
		return m, nil
	case tea.MouseActionMotion:
		return m.handleMouseMotion(screen)
	case tea.MouseActionRelease:
		return m.handleMouseRelease(screen)
	}
	return m, nil
}

func (m editor) handleMousePress(screen Point) (tea.Model, tea.Cmd) {
	if m.mode != editorNormal {
		return m, nil
	}
	p := screenToCanvas(screen, Point{}, m.doc.transform)
	now := time.Now()

	// In connect mode a press near a node's anchor starts a connection
	// drag. Anchors sit outside the node border, so every node gets a
	// chance, topmost first; an unhandled press falls back to selection.
	if m.machine.State().Mode == ModeConnecting {
		nodes := m.doc.displayNodes()
		for i := len(nodes) - 1; i >= 0; i-- {
			if m.machine.HandleNodeMouseDown(nodes[i].ID, screen) {
				m.drag = NewDragSession(nodes[i].ID, screen, now)
				m.dragKind = dragConnection
				return m, nil
			}
		}
	}

	if n, ok := m.doc.nodeAt(p); ok {
		m.selectedNode = n.ID
		m.drag = NewDragSession(n.ID, screen, now)
		m.dragKind = dragMoveNode
		m.dragNodeStart = Point{X: n.X, Y: n.Y}
		return m, nil
	}

	geoms := m.edges.Layout(m.doc.displayNodes(), m.doc.edges, m.gestureMode(), m.activeNodeID())
	if edgeID := HitTest(geoms, p); edgeID != "" {
		if !m.config.Confirmations {
			return m, m.deleteEdgeCmd(edgeID)
		}
		m.mode = editorConfirm
		m.confirmWhat = confirmDeleteEdge
		m.confirmTarget = edgeID
		return m, nil
	}

	m.selectedNode = ""
	m.drag = NewDragSession("", screen, now)
	m.dragKind = dragPan
	m.panStart = m.doc.transform
	return m, nil
}

func (m editor) handleMouseMotion(screen Point) (tea.Model, tea.Cmd) {
	m.machine.HandleMouseMove(screen)

	if m.drag == nil {
		return m, nil
	}
	justConfirmed := m.drag.Update(screen, time.Now())

	switch m.dragKind {
	case dragPan:
		if m.drag.Confirmed() {
			dx, dy := m.drag.Delta()
			m.doc.transform.PanX = m.panStart.PanX + dx
			m.doc.transform.PanY = m.panStart.PanY + dy
			m.machine.UpdateTransform(m.doc.transform)
		}
	}

	if justConfirmed {
		// Continuous rendering engages only now, never on the bare press.
		switch m.dragKind {
		case dragMoveNode:
			return m, m.loop.Start(m.drag.NodeID, m.moveSource())
		case dragPan:
			return m, m.loop.Start("", nil)
		case dragConnection:
			return m, m.loop.Start(m.drag.NodeID, m.committedSource())
		}
	}
	return m, nil
}

// cancelConnectionGesture tears down an in-flight connection drag when
// something other than the machine itself ends it, so the sync loop and
// the live override don't outlast the gesture.
func (m *editor) cancelConnectionGesture() {
	if m.dragKind != dragConnection {
		return
	}
	m.loop.Cancel()
	m.doc.clearLive()
	m.drag = nil
	m.dragKind = dragNone
}

func (m editor) handleMouseRelease(screen Point) (tea.Model, tea.Cmd) {
	if m.machine.State().Mode == ModeDraggingConnection {
		m.loop.Stop()
		m.doc.clearLive()
		cmd := m.machine.HandleMouseUp()
		m.drag = nil
		m.dragKind = dragNone
		return m, cmd
	}

	if m.drag == nil {
		return m, nil
	}
	drag := m.drag
	kind := m.dragKind
	m.drag = nil
	m.dragKind = dragNone

	if !drag.Confirmed() {
		// A pure click: selection happened on the press, nothing to
		// commit, and the render loop never started.
		return m, nil
	}

	switch kind {
	case dragMoveNode:
		m.loop.Stop() // final sync captures the resting position
		pos := m.doc.livePos
		if m.doc.liveNode != drag.NodeID {
			// No frame ever ran; derive the final position directly.
			dx, dy := drag.Delta()
			pos = Point{
				X: m.dragNodeStart.X + dx/m.doc.transform.Scale,
				Y: m.dragNodeStart.Y + dy/m.doc.transform.Scale,
			}
		}
		for i := range m.doc.nodes {
			if m.doc.nodes[i].ID == drag.NodeID {
				m.doc.nodes[i].X = pos.X
				m.doc.nodes[i].Y = pos.Y
			}
		}
		m.doc.clearLive()
		m.machine.UpdateNodes(m.doc.displayNodes())
		return m, m.commitPositionCmd(drag.NodeID, pos)
	case dragPan:
		m.loop.Stop()
	case dragConnection:
		// The machine already left the drag (connect mode was torn
		// down mid-gesture), so there is nothing to finish.
		m.loop.Cancel()
		m.doc.clearLive()
	}
	return m, nil
}

// moveSource projects the dragged node's live position from the gesture
// delta. Reports false once the node has been deleted mid-drag, at which
// point the loop degrades to the last known coordinates.
func (m editor) moveSource() PositionSource {
	doc := m.doc
	drag := m.drag
	start := m.dragNodeStart
	return PositionSourceFunc(func(nodeID string) (Point, bool) {
		if _, ok := doc.node(nodeID); !ok {
			return Point{}, false
		}
		dx, dy := drag.Delta()
		scale := doc.transform.Scale
		return Point{X: start.X + dx/scale, Y: start.Y + dy/scale}, true
	})
}

// committedSource reads the committed model position, used while a
// connection drag needs per-frame anchor resync.
func (m editor) committedSource() PositionSource {
	doc := m.doc
	return PositionSourceFunc(func(nodeID string) (Point, bool) {
		n, ok := doc.node(nodeID)
		if !ok {
			return Point{}, false
		}
		return Point{X: n.X, Y: n.Y}, ok
	})
}

func (m *editor) applyZoom(factor float64) {
	center := Point{X: float64(m.width) * cellWidth / 2, Y: float64(m.height) * cellHeight / 2}
	m.doc.transform = zoomAt(m.doc.transform, Point{}, center, factor)
	m.machine.UpdateTransform(m.doc.transform)
}

func (m *editor) applyPan(dx, dy float64) {
	m.doc.transform.PanX += dx
	m.doc.transform.PanY += dy
	m.machine.UpdateTransform(m.doc.transform)
}

func (m *editor) removeNodeLocally(nodeID string) {
	nodes := m.doc.nodes[:0]
	for _, n := range m.doc.nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		}
	}
	m.doc.nodes = nodes
	edges := m.doc.edges[:0]
	for _, e := range m.doc.edges {
		if e.FromNodeID != nodeID && e.ToNodeID != nodeID {
			edges = append(edges, e)
		}
	}
	m.doc.edges = edges
	if m.selectedNode == nodeID {
		m.selectedNode = ""
	}
	m.machine.UpdateNodes(m.doc.displayNodes())
	m.sink.status = "node deleted"
}

func (m editor) createNodeCmd(label string, pos Point) tea.Cmd {
	store := m.store
	workspaceID := m.workspaceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		node, err := store.CreateNode(ctx, workspaceID, label, pos.X, pos.Y)
		return nodeCreatedMsg{node: node, err: err}
	}
}

func (m editor) commitPositionCmd(nodeID string, pos Point) tea.Cmd {
	store := m.store
	workspaceID := m.workspaceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := store.UpdateNodePosition(ctx, workspaceID, nodeID, pos.X, pos.Y)
		return nodePositionCommittedMsg{err: err}
	}
}

func (m editor) deleteNodeCmd(nodeID string) tea.Cmd {
	store := m.store
	workspaceID := m.workspaceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := store.DeleteNode(ctx, workspaceID, nodeID)
		return nodeDeletedMsg{nodeID: nodeID, err: err}
	}
}

func (m editor) deleteEdgeCmd(edgeID string) tea.Cmd {
	store := m.store
	workspaceID := m.workspaceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := store.DeleteEdge(ctx, workspaceID, edgeID)
		return edgeDeletedMsg{edgeID: edgeID, err: err}
	}
}

func (m editor) updateLabelCmd(nodeID, label string) tea.Cmd {
	store := m.store
	workspaceID := m.workspaceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := store.UpdateNodeLabel(ctx, workspaceID, nodeID, label)
		return labelUpdatedMsg{nodeID: nodeID, label: label, err: err}
	}
}

func (m editor) exportCmd() tea.Cmd {
	nodes := m.doc.displayNodes()
	edges := m.doc.edges
	path := fmt.Sprintf("%s.png", m.workspaceID)
	return func() tea.Msg {
		err := exportPNG(path, nodes, edges)
		return exportDoneMsg{path: path, err: err}
	}
}
