package main

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore records edge-create calls and can be forced to fail.
type fakeStore struct {
	createCalls  int
	createErr    error
	enrichCalls  int
	enrichErr    error
	lastReq      CreateEdgeRequest
	lastEnriched string
}

func (f *fakeStore) CreateNode(context.Context, string, string, float64, float64) (*Node, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeStore) UpdateNodePosition(context.Context, string, string, float64, float64) error {
	return nil
}
func (f *fakeStore) UpdateNodeLabel(context.Context, string, string, string) error { return nil }
func (f *fakeStore) DeleteNode(context.Context, string, string) error              { return nil }
func (f *fakeStore) ListNodes(context.Context, string) ([]Node, error)             { return nil, nil }
func (f *fakeStore) DeleteEdge(context.Context, string, string) error              { return nil }
func (f *fakeStore) ListEdges(context.Context, string) ([]Edge, error)             { return nil, nil }
func (f *fakeStore) Close() error                                                  { return nil }

func (f *fakeStore) CreateEdge(_ context.Context, _ string, req CreateEdgeRequest) (*Edge, error) {
	f.createCalls++
	f.lastReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &Edge{
		ID:         "edge-1",
		FromNodeID: req.FromNodeID,
		ToNodeID:   req.ToNodeID,
		Type:       req.Type,
	}, nil
}

func (f *fakeStore) UpdateEdgeEnrichment(_ context.Context, _ string, edgeID string, _ Enrichment) error {
	f.enrichCalls++
	f.lastEnriched = edgeID
	return f.enrichErr
}

type fakeEnricher struct {
	calls  int
	err    error
	result Enrichment
}

func (f *fakeEnricher) SummarizeRelationship(context.Context, string, RelationshipContext) (*Enrichment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	return &r, nil
}

type callbackRecorder struct {
	created []Edge
	failed  []error
}

func (r *callbackRecorder) callbacks() ConnectionCallbacks {
	return ConnectionCallbacks{
		OnConnectionCreated: func(e Edge) { r.created = append(r.created, e) },
		OnConnectionFailed:  func(err error) { r.failed = append(r.failed, err) },
	}
}

func newTestMachine(store Store, enricher Enricher) (*ConnectionMachine, *callbackRecorder) {
	rec := &callbackRecorder{}
	m := NewConnectionMachine("ws", store, enricher, zap.NewNop(), rec.callbacks())
	m.UpdateNodes([]Node{
		{ID: "a", Label: "alpha", X: 0, Y: 0},
		{ID: "b", Label: "beta", X: 400, Y: 0},
	})
	return m, rec
}

func TestEnterConnectModeNeedsTwoNodes(t *testing.T) {
	m := NewConnectionMachine("ws", &fakeStore{}, nil, zap.NewNop(), ConnectionCallbacks{})
	m.UpdateNodes([]Node{{ID: "a"}})

	m.EnterConnectMode()
	assert.Equal(t, ModeIdle, m.State().Mode)

	m.UpdateNodes([]Node{{ID: "a"}, {ID: "b", X: 400}})
	m.EnterConnectMode()
	assert.Equal(t, ModeConnecting, m.State().Mode)
	assert.True(t, m.State().ShowAnchors)
}

func TestKeyTogglesConnectMode(t *testing.T) {
	m, _ := newTestMachine(&fakeStore{}, nil)

	assert.True(t, m.HandleKeyDown("c"))
	assert.Equal(t, ModeConnecting, m.State().Mode)

	assert.True(t, m.HandleKeyDown("C"))
	assert.Equal(t, ModeIdle, m.State().Mode)
	assert.False(t, m.State().ShowAnchors)

	assert.False(t, m.HandleKeyDown("x"))
	assert.False(t, m.HandleKeyDown("esc"), "escape is not consumed while idle")
}

func TestMouseDownMissesAnchors(t *testing.T) {
	m, _ := newTestMachine(&fakeStore{}, nil)
	m.EnterConnectMode()

	// Node center is nowhere near any anchor.
	handled := m.HandleNodeMouseDown("a", Point{X: 120, Y: 60})
	assert.False(t, handled)
	assert.Equal(t, ModeConnecting, m.State().Mode)
	assert.Nil(t, m.State().PreviewLine)
}

func TestMouseDownIgnoredOutsideConnectMode(t *testing.T) {
	m, _ := newTestMachine(&fakeStore{}, nil)

	assert.False(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
	assert.Equal(t, ModeIdle, m.State().Mode)
}

func TestConnectionGestureCreatesOneEdge(t *testing.T) {
	store := &fakeStore{}
	m, rec := newTestMachine(store, nil)
	m.EnterConnectMode()

	// Press on a's right anchor at (248, 68).
	require.True(t, m.HandleNodeMouseDown("a", Point{X: 250, Y: 66}))
	state := m.State()
	assert.Equal(t, ModeDraggingConnection, state.Mode)
	require.NotNil(t, state.StartAnchor)
	assert.Equal(t, "a-right", state.StartAnchor.ID)
	require.NotNil(t, state.PreviewLine)
	assert.Equal(t, Point{X: 248, Y: 68}, state.PreviewLine.From)

	// Drag toward b's left anchor at (392, 68); the preview snaps to it.
	m.HandleMouseMove(Point{X: 388, Y: 70})
	state = m.State()
	require.NotNil(t, state.TargetAnchor)
	assert.Equal(t, "b-left", state.TargetAnchor.ID)
	assert.Equal(t, Point{X: 392, Y: 68}, state.PreviewLine.To)

	// Release: the mode resets before the request even runs.
	cmd := m.HandleMouseUp()
	require.NotNil(t, cmd)
	assert.Equal(t, ModeConnecting, m.State().Mode)
	assert.Nil(t, m.State().PreviewLine)
	assert.Equal(t, 0, store.createCalls)

	msg := cmd()
	created, ok := msg.(edgeCreatedMsg)
	require.True(t, ok)
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, "a", store.lastReq.FromNodeID)
	assert.Equal(t, "b", store.lastReq.ToNodeID)
	assert.Equal(t, EdgeTypeRelated, store.lastReq.Type)

	assert.Nil(t, m.HandleCreateResult(created), "no enricher configured")
	require.Len(t, rec.created, 1)
	assert.Equal(t, "edge-1", rec.created[0].ID)
	assert.Empty(t, rec.failed)
}

func TestReleaseWithoutTargetCreatesNothing(t *testing.T) {
	store := &fakeStore{}
	m, rec := newTestMachine(store, nil)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
	m.HandleMouseMove(Point{X: 300, Y: 200})
	assert.Nil(t, m.State().TargetAnchor)

	assert.Nil(t, m.HandleMouseUp())
	assert.Equal(t, ModeConnecting, m.State().Mode)
	assert.Equal(t, 0, store.createCalls)
	assert.Empty(t, rec.failed)
}

func TestReleaseOverOwnNodeCreatesNothing(t *testing.T) {
	store := &fakeStore{}
	m, _ := newTestMachine(store, nil)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))

	// Over a's own bottom anchor: the start node is excluded from
	// targeting, so there is no snap and no request.
	m.HandleMouseMove(Point{X: 128, Y: 128})
	assert.Nil(t, m.State().TargetAnchor)
	assert.Nil(t, m.HandleMouseUp())
	assert.Equal(t, 0, store.createCalls)
}

func TestPersistenceFailureLeavesCleanState(t *testing.T) {
	store := &fakeStore{createErr: errors.New("disk full")}
	m, rec := newTestMachine(store, nil)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
	m.HandleMouseMove(Point{X: 392, Y: 68})
	cmd := m.HandleMouseUp()
	require.NotNil(t, cmd)

	msg := cmd()
	failed, ok := msg.(edgeCreateFailedMsg)
	require.True(t, ok)
	assert.Nil(t, m.HandleCreateResult(failed))

	require.Len(t, rec.failed, 1)
	assert.Empty(t, rec.created)

	// The machine is immediately usable for another attempt.
	assert.Equal(t, ModeConnecting, m.State().Mode)
	assert.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
}

func TestEscapeAbandonsDrag(t *testing.T) {
	store := &fakeStore{}
	m, _ := newTestMachine(store, nil)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
	assert.True(t, m.HandleKeyDown("esc"))

	state := m.State()
	assert.Equal(t, ModeIdle, state.Mode)
	assert.Nil(t, state.StartAnchor)
	assert.Nil(t, state.PreviewLine)
	assert.False(t, state.ShowAnchors)
	for _, a := range m.Anchors() {
		assert.False(t, a.IsActive)
		assert.False(t, a.IsHighlighted)
	}
	assert.Equal(t, 0, store.createCalls)
}

func TestUpdateNodesKeepsPreviewGluedMidDrag(t *testing.T) {
	m, _ := newTestMachine(&fakeStore{}, nil)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))

	// The start node moves while the drag is in flight.
	m.UpdateNodes([]Node{
		{ID: "a", X: 50, Y: 100},
		{ID: "b", X: 400, Y: 0},
	})
	state := m.State()
	require.NotNil(t, state.StartAnchor)
	assert.Equal(t, Point{X: 298, Y: 168}, state.StartAnchor.Position)
	assert.Equal(t, Point{X: 298, Y: 168}, state.PreviewLine.From)
}

func TestUpdateNodesKeepsLastPositionWhenStartNodeDeleted(t *testing.T) {
	m, _ := newTestMachine(&fakeStore{}, nil)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
	m.UpdateNodes([]Node{{ID: "b", X: 400, Y: 0}})

	state := m.State()
	require.NotNil(t, state.StartAnchor)
	assert.Equal(t, Point{X: 248, Y: 68}, state.StartAnchor.Position)
}

func TestEnrichmentSuccessPersistsAndReports(t *testing.T) {
	store := &fakeStore{}
	enricher := &fakeEnricher{result: Enrichment{
		AISummary:            "alpha feeds beta",
		RelationshipStrength: 0.8,
	}}
	m, _ := newTestMachine(store, enricher)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
	m.HandleMouseMove(Point{X: 392, Y: 68})
	msg := m.HandleMouseUp()()
	enrich := m.HandleCreateResult(msg)
	require.NotNil(t, enrich)

	result := enrich()
	applied, ok := result.(enrichmentAppliedMsg)
	require.True(t, ok)
	assert.Equal(t, "edge-1", applied.edgeID)
	assert.Equal(t, "alpha feeds beta", applied.enrichment.AISummary)
	assert.Equal(t, 1, enricher.calls)
	assert.Equal(t, "edge-1", store.lastEnriched)
}

func TestEnrichmentFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{}
	enricher := &fakeEnricher{err: errors.New("model offline")}
	m, rec := newTestMachine(store, enricher)
	m.EnterConnectMode()

	require.True(t, m.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
	m.HandleMouseMove(Point{X: 392, Y: 68})
	msg := m.HandleMouseUp()()
	enrich := m.HandleCreateResult(msg)
	require.NotNil(t, enrich)

	assert.Nil(t, enrich())
	assert.Equal(t, 0, store.enrichCalls)
	// The edge itself stays created.
	require.Len(t, rec.created, 1)
	assert.Empty(t, rec.failed)
}

func TestTransformAffectsAnchorHitTesting(t *testing.T) {
	m, _ := newTestMachine(&fakeStore{}, nil)
	m.UpdateTransform(Transform{PanX: 100, PanY: 50, Scale: 2})
	m.EnterConnectMode()

	// a-right sits at canvas (248, 68), which is screen (596, 186).
	require.True(t, m.HandleNodeMouseDown("a", Point{X: 596, Y: 186}))

	// In canvas space the same screen offset shrinks with zoom, so a press
	// that looks close on screen can still miss.
	m2, _ := newTestMachine(&fakeStore{}, nil)
	m2.UpdateTransform(Transform{Scale: 2})
	m2.EnterConnectMode()
	assert.False(t, m2.HandleNodeMouseDown("a", Point{X: 248, Y: 68}))
}

func TestSetEnabledExitsConnectMode(t *testing.T) {
	m, _ := newTestMachine(&fakeStore{}, nil)
	m.EnterConnectMode()

	m.SetEnabled(false)
	assert.Equal(t, ModeIdle, m.State().Mode)

	m.EnterConnectMode()
	assert.Equal(t, ModeIdle, m.State().Mode, "disabled machine cannot arm")

	m.SetEnabled(true)
	m.EnterConnectMode()
	assert.Equal(t, ModeConnecting, m.State().Mode)
}
