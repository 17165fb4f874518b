package main

import "time"

// DragSession tracks one pointer-down → pointer-up gesture and decides
// whether it is a click or a drag. A session confirms exactly once, the
// first moment the press has lasted minDragTime or the pointer has moved
// minDragDistance from its start. Until then the gesture must behave as a
// potential click: no position commits and no continuous rendering.
type DragSession struct {
	NodeID    string
	StartTime time.Time
	Start     Point
	Last      Point
	confirmed bool
}

// NewDragSession starts tracking a press at the given screen position.
// NodeID is empty for canvas (pan) gestures.
func NewDragSession(nodeID string, at Point, now time.Time) *DragSession {
	return &DragSession{
		NodeID:    nodeID,
		StartTime: now,
		Start:     at,
		Last:      at,
	}
}

// Update records a move sample and reports whether this sample confirmed the
// drag. It returns true at most once per session.
func (s *DragSession) Update(at Point, now time.Time) bool {
	s.Last = at
	if s.confirmed {
		return false
	}
	if now.Sub(s.StartTime) >= minDragTime || s.Displacement() >= minDragDistance {
		s.confirmed = true
		return true
	}
	return false
}

func (s *DragSession) Confirmed() bool {
	return s.confirmed
}

// Displacement is the straight-line distance from the press position.
func (s *DragSession) Displacement() float64 {
	return s.Start.DistanceTo(s.Last)
}

// Delta is the total pointer movement since the press, in screen pixels.
func (s *DragSession) Delta() (dx, dy float64) {
	return s.Last.X - s.Start.X, s.Last.Y - s.Start.Y
}
