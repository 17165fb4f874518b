package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// frameMsg is one display-frame callback. gen ties it to the loop run that
// scheduled it; a frame from a cancelled generation is dropped on arrival.
type frameMsg struct {
	gen int
	at  time.Time
}

// PositionSource supplies the authoritative live position of the element
// being moved. During a gesture this is the gesture-projected position, not
// the committed model value; ok is false when the element no longer exists.
type PositionSource interface {
	Position(nodeID string) (Point, bool)
}

type PositionSourceFunc func(nodeID string) (Point, bool)

func (f PositionSourceFunc) Position(nodeID string) (Point, bool) {
	return f(nodeID)
}

// RenderSyncLoop re-reads the live position of the actively moved element
// once per display frame and invokes onFrame to recompute dependent geometry
// and trigger a redraw. It owns its scheduling handle outright: Start bumps
// the generation (cancelling any loop already in flight, so at most one loop
// runs per gesture) and Stop cancels the pending frame before performing
// exactly one final synchronous sync, which prevents the snap-back flicker
// between the last mid-gesture frame and the first idle frame.
//
// Callers only Start the loop once a gesture is confirmed; an unconfirmed
// press never engages continuous rendering.
type RenderSyncLoop struct {
	gen      int
	active   bool
	nodeID   string
	source   PositionSource
	last     Point
	interval time.Duration
	onFrame  func(nodeID string, pos Point)
	logger   *zap.Logger
}

func NewRenderSyncLoop(logger *zap.Logger, onFrame func(nodeID string, pos Point)) *RenderSyncLoop {
	return &RenderSyncLoop{
		interval: frameInterval,
		onFrame:  onFrame,
		logger:   logger,
	}
}

func (l *RenderSyncLoop) Active() bool {
	return l.active
}

func (l *RenderSyncLoop) ActiveNodeID() string {
	return l.nodeID
}

// Start begins per-frame synchronization for a confirmed gesture. nodeID is
// empty for viewport (pan) gestures.
func (l *RenderSyncLoop) Start(nodeID string, source PositionSource) tea.Cmd {
	l.gen++
	l.active = true
	l.nodeID = nodeID
	l.source = source
	l.last = Point{}
	return l.tick()
}

// Stop cancels the scheduled frame immediately and runs one final
// synchronous sync to capture the resting position.
func (l *RenderSyncLoop) Stop() {
	if !l.active {
		return
	}
	l.gen++
	l.active = false
	l.runFrame()
	l.source = nil
	l.nodeID = ""
}

// Cancel stops the loop without the final sync, for gestures that were
// abandoned rather than completed.
func (l *RenderSyncLoop) Cancel() {
	l.gen++
	l.active = false
	l.source = nil
	l.nodeID = ""
}

// HandleFrame processes one frame message and reschedules the next frame.
// Stale-generation frames return nil without side effects.
func (l *RenderSyncLoop) HandleFrame(msg frameMsg) tea.Cmd {
	if !l.active || msg.gen != l.gen {
		return nil
	}
	l.runFrame()
	return l.tick()
}

func (l *RenderSyncLoop) tick() tea.Cmd {
	gen := l.gen
	return tea.Tick(l.interval, func(t time.Time) tea.Msg {
		return frameMsg{gen: gen, at: t}
	})
}

// runFrame reads the live position and hands it to onFrame. A missing
// element degrades to the last known coordinates, and a panic in the
// callback is contained so future frames keep running.
func (l *RenderSyncLoop) runFrame() {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("render frame panicked", zap.Any("panic", r))
		}
	}()
	pos := l.last
	if l.source != nil {
		if p, ok := l.source.Position(l.nodeID); ok {
			pos = p
			l.last = p
		}
	}
	if l.onFrame != nil {
		l.onFrame(l.nodeID, pos)
	}
}
