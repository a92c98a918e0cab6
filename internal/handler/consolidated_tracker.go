package handler

import (
	"sync"

	"dockmonitor/pkg/types"
)

// consolidatedTracker keeps a pre-terminal introspection view per
// in-flight shipment (how close it is to its consolidated flush), surfaced
// as a gauge. ConsolidatedDataRule alone performs the insert; this map is
// never written to the database.
type consolidatedTracker struct {
	mu      sync.Mutex
	pending map[types.ConsolidatedKey]types.ConsolidatedEvent
}

func newConsolidatedTracker() *consolidatedTracker {
	return &consolidatedTracker{pending: make(map[types.ConsolidatedKey]types.ConsolidatedEvent)}
}

func (t *consolidatedTracker) touch(door types.DockDoor, event types.DockEvent) {
	if door.CurrentShipment == nil {
		return
	}

	relevant := event.Kind == types.EventShipmentAssigned ||
		event.Kind == types.EventTrailerStateChanged ||
		event.Kind == types.EventDoorStateChanged ||
		(event.Kind == types.EventWmsEvent && event.Wms.MessageType == types.MsgStartedShipment)
	if !relevant {
		return
	}

	key := types.ConsolidatedKey{Plant: door.PlantID, DoorName: door.DockName, ShipmentID: parseShipmentID(*door.CurrentShipment)}

	t.mu.Lock()
	defer t.mu.Unlock()

	ce := t.pending[key]
	ce.Plant, ce.DoorName, ce.ShipmentID = key.Plant, key.DoorName, key.ShipmentID
	ce.ShipmentAssigned = door.AssignmentDttm
	ce.DockAssignment = door.DockAssignment
	ce.TrailerDocking = door.DockingTime
	ce.StartedShipment = door.ShipmentStartedDttm
	ce.DockReady = door.LastDockReadyTime
	t.pending[key] = ce
}

// drop removes a shipment's introspection entry once ConsolidatedDataRule
// has flushed it (terminal marker reached).
func (t *consolidatedTracker) drop(key types.ConsolidatedKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
}

func (t *consolidatedTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func parseShipmentID(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
