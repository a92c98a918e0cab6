// Package repository implements the door repository: the single canonical
// (plant, door) -> DockDoor map, serialized for concurrent readers and
// exclusive writers.
package repository

import (
	"sync"
	"time"

	"dockmonitor/pkg/types"
)

// Repository owns the two-level plant -> door-name -> DockDoor mapping.
// Reads return a Clone() so callers may mutate freely; writes wholesale
// replace the entry for that key.
type Repository struct {
	mu    sync.RWMutex
	doors map[string]map[string]types.DockDoor
}

// New returns an empty repository. Doors are populated via
// InitializeFromConfig at startup.
func New() *Repository {
	return &Repository{doors: make(map[string]map[string]types.DockDoor)}
}

// InitializeFromConfig creates one DockDoor per configured dock, primed
// with an empty sensor slot for every tag in the fixed types.SensorTagNames
// list. The plant's dock_plc_tags setting is not consulted, so every door
// gets the same slots. The sensor map's key set never grows or shrinks
// after this.
func (r *Repository) InitializeFromConfig(cfg types.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, plant := range cfg.Plants {
		byName := make(map[string]types.DockDoor, len(plant.DockDoors.DockDoorConfig))
		for _, dc := range plant.DockDoors.DockDoorConfig {
			door := types.DockDoor{
				PlantID:  plant.PlantID,
				DockName: dc.DockName,
				DockIP:   dc.DockIP,
				Sensors:  make(map[string]types.Sensor, len(types.SensorTagNames)),
			}
			for _, tag := range types.SensorTagNames {
				door.Sensors[tag] = types.Sensor{}
			}
			byName[dc.DockName] = door
		}
		r.doors[plant.PlantID] = byName
	}
}

// Get returns a snapshot (deep-enough copy) of the door, or false if the
// (plant, door) pair isn't configured.
func (r *Repository) Get(plant, door string) (types.DockDoor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName, ok := r.doors[plant]
	if !ok {
		return types.DockDoor{}, false
	}
	d, ok := byName[door]
	if !ok {
		return types.DockDoor{}, false
	}
	return d.Clone(), true
}

// Update replaces the stored door wholesale. LastUpdated is not touched
// here; callers are responsible for stamping it
// before calling Update.
func (r *Repository) Update(plant string, door types.DockDoor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.doors[plant]
	if !ok {
		byName = make(map[string]types.DockDoor)
		r.doors[plant] = byName
	}
	byName[door.DockName] = door
}

// ListAll returns a snapshot of every configured door across every plant.
// Ordering is unspecified.
func (r *Repository) ListAll() []types.DockDoor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.DockDoor, 0)
	for _, byName := range r.doors {
		for _, d := range byName {
			out = append(out, d.Clone())
		}
	}
	return out
}

// Touch stamps LastUpdated to ts on the given door if present, used by
// callers that mutate a snapshot outside of a full Update round-trip.
func Touch(d *types.DockDoor, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	d.LastUpdated = ts
}
