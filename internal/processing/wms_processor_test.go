package processing

import (
	"testing"
	"time"

	"dockmonitor/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusRow(door string, shipment *string, loadingStatus string, ts time.Time) types.WmsDoorStatus {
	return types.WmsDoorStatus{
		Plant:         "P1",
		DoorName:      door,
		AssignedShipment: shipment,
		LoadingStatus: loadingStatus,
		LogDttm:       ts,
	}
}

func strPtr(s string) *string { return &s }

func TestShipmentAssignmentEmitsEvent(t *testing.T) {
	repo := newTestRepo()
	p := NewWmsProcessor(repo, testLogger())
	ts := time.Now()

	events := p.Process([]types.WmsDoorStatus{statusRow("D1", strPtr("123"), "", ts)})

	require.Len(t, events, 1)
	assert.Equal(t, types.EventShipmentAssigned, events[0].Kind)
	assert.Equal(t, "123", *events[0].NewShipment)
	assert.Nil(t, events[0].PreviousShipment)

	door, _ := repo.Get("P1", "D1")
	require.NotNil(t, door.CurrentShipment)
	assert.Equal(t, "123", *door.CurrentShipment)
	require.NotNil(t, door.AssignmentDttm)
	require.NotNil(t, door.DockAssignment)
}

func TestShipmentUnassignmentEmitsEvent(t *testing.T) {
	repo := newTestRepo()
	p := NewWmsProcessor(repo, testLogger())
	ts := time.Now()

	p.Process([]types.WmsDoorStatus{statusRow("D1", strPtr("123"), "", ts)})
	events := p.Process([]types.WmsDoorStatus{statusRow("D1", nil, "", ts.Add(time.Minute))})

	require.Len(t, events, 1)
	assert.Equal(t, types.EventShipmentUnassigned, events[0].Kind)
	assert.Equal(t, "123", *events[0].PreviousShipment)

	door, _ := repo.Get("P1", "D1")
	assert.Nil(t, door.CurrentShipment)
	assert.Equal(t, "123", *door.PreviousShipment)
	require.NotNil(t, door.UnassignmentDttm)
}

func TestShipmentReplacementRecordsPrevious(t *testing.T) {
	repo := newTestRepo()
	p := NewWmsProcessor(repo, testLogger())
	ts := time.Now()

	p.Process([]types.WmsDoorStatus{statusRow("D1", strPtr("123"), "", ts)})
	events := p.Process([]types.WmsDoorStatus{statusRow("D1", strPtr("456"), "", ts.Add(time.Minute))})

	require.Len(t, events, 1)
	assert.Equal(t, types.EventShipmentAssigned, events[0].Kind)
	assert.Equal(t, "456", *events[0].NewShipment)
	assert.Equal(t, "123", *events[0].PreviousShipment)
}

func TestLoadingStatusChangeDerivesDoorState(t *testing.T) {
	cases := []struct {
		status    string
		wantState types.DoorState
	}{
		{"CSO", types.DoorAssigned},
		{"WhseInspection", types.DoorDriverCheckedIn},
		{"LgvAllocation", types.DoorReady},
		{"Loading", types.DoorLoading},
		{"Completed", types.DoorLoadingCompleted},
		{"WaitingForExit", types.DoorWaitingForExit},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			repo := newTestRepo()
			p := NewWmsProcessor(repo, testLogger())

			events := p.Process([]types.WmsDoorStatus{statusRow("D1", nil, tc.status, time.Now())})

			require.Len(t, events, 2)
			assert.Equal(t, types.EventLoadingStatusChanged, events[0].Kind)
			assert.Equal(t, types.EventDoorStateChanged, events[1].Kind)
			assert.Equal(t, tc.wantState, events[1].NewDoorState)

			door, _ := repo.Get("P1", "D1")
			assert.Equal(t, tc.wantState, door.DoorState)
		})
	}
}

func TestSuspendedStatusPreservesDoorState(t *testing.T) {
	repo := newTestRepo()
	p := NewWmsProcessor(repo, testLogger())

	door, _ := repo.Get("P1", "D1")
	door.DoorState = types.DoorLoading
	door.LoadingStatus = types.LoadingLoading
	repo.Update("P1", door)

	events := p.Process([]types.WmsDoorStatus{statusRow("D1", nil, "Suspended", time.Now())})

	require.Len(t, events, 1)
	assert.Equal(t, types.EventLoadingStatusChanged, events[0].Kind)
	assert.Equal(t, types.LoadingSuspended, events[0].NewLoadingStatus)

	got, _ := repo.Get("P1", "D1")
	assert.Equal(t, types.DoorLoading, got.DoorState)
	assert.Equal(t, types.LoadingSuspended, got.LoadingStatus)
	assert.Equal(t, types.LoadingLoading, got.PreviousLoadingStatus)
}

func TestUnknownLoadingStatusDropped(t *testing.T) {
	repo := newTestRepo()
	p := NewWmsProcessor(repo, testLogger())

	events := p.Process([]types.WmsDoorStatus{statusRow("D1", nil, "Bananas", time.Now())})

	assert.Empty(t, events)
	door, _ := repo.Get("P1", "D1")
	assert.Equal(t, types.LoadingIdle, door.LoadingStatus)
}

func TestWmsShipmentStatusCopiedThrough(t *testing.T) {
	repo := newTestRepo()
	p := NewWmsProcessor(repo, testLogger())

	row := statusRow("D1", nil, "", time.Now())
	row.WmsShipmentStatus = "Shipped"
	p.Process([]types.WmsDoorStatus{row})

	door, _ := repo.Get("P1", "D1")
	assert.Equal(t, "Shipped", door.WmsShipmentStatus)
}

func TestUnknownDoorRowSkipped(t *testing.T) {
	repo := newTestRepo()
	p := NewWmsProcessor(repo, testLogger())

	rows := []types.WmsDoorStatus{
		statusRow("D9", strPtr("1"), "CSO", time.Now()),
		statusRow("D1", strPtr("2"), "CSO", time.Now()),
	}
	events := p.Process(rows)

	for _, e := range events {
		assert.Equal(t, "D1", e.Door)
	}
	require.NotEmpty(t, events)
}

func TestDispatchWmsEvents(t *testing.T) {
	p := NewWmsProcessor(newTestRepo(), testLogger())
	ts := time.Now()

	rows := []types.WmsEvent{
		{Plant: "P1", DockName: "D1", ShipmentID: "7", LogDttm: ts, MessageType: types.MsgStartedShipment},
		{Plant: "P1", DockName: "D1", ShipmentID: "7", LogDttm: ts.Add(time.Second), MessageType: types.MsgLgvStartLoading},
	}
	events := p.DispatchWmsEvents(rows)

	require.Len(t, events, 2)
	for i, e := range events {
		assert.Equal(t, types.EventWmsEvent, e.Kind)
		assert.Equal(t, rows[i].MessageType, e.Wms.MessageType)
		assert.Equal(t, rows[i].LogDttm, e.Timestamp)
	}
}
