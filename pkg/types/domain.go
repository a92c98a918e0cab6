package types

import "time"

// DoorState is the primary door state machine value.
type DoorState int

const (
	DoorUnassigned DoorState = iota
	DoorAssigned
	DoorDriverCheckedIn
	DoorTrailerApproaching
	DoorTrailerDocking
	DoorTrailerDocked
	DoorReady
	DoorLoading
	DoorLoadingCompleted
	DoorWaitingForExit
)

func (s DoorState) String() string {
	switch s {
	case DoorAssigned:
		return "Assigned"
	case DoorDriverCheckedIn:
		return "DriverCheckedIn"
	case DoorTrailerApproaching:
		return "TrailerApproaching"
	case DoorTrailerDocking:
		return "TrailerDocking"
	case DoorTrailerDocked:
		return "TrailerDocked"
	case DoorReady:
		return "DoorReady"
	case DoorLoading:
		return "Loading"
	case DoorLoadingCompleted:
		return "LoadingCompleted"
	case DoorWaitingForExit:
		return "WaitingForExit"
	default:
		return "Unassigned"
	}
}

// TrailerState tracks whether a trailer is physically docked.
type TrailerState int

const (
	TrailerUndocked TrailerState = iota
	TrailerDocked
)

func (s TrailerState) String() string {
	if s == TrailerDocked {
		return "Docked"
	}
	return "Undocked"
}

// LoadingStatus mirrors the WMS's own loading-status enumeration.
type LoadingStatus int

const (
	LoadingIdle LoadingStatus = iota
	LoadingCSO
	LoadingWhseInspection
	LoadingLgvAllocation
	LoadingLoading
	LoadingSuspended
	LoadingCompleted
	LoadingWaitingForExit
	LoadingCancelledShipment
	LoadingStartedWithAnticipation
)

// ParseLoadingStatus converts a WMS status string into the enum. An unknown
// value is a Parse-class error per the error taxonomy.
func ParseLoadingStatus(s string) (LoadingStatus, bool) {
	switch s {
	case "Idle":
		return LoadingIdle, true
	case "CSO":
		return LoadingCSO, true
	case "WhseInspection":
		return LoadingWhseInspection, true
	case "LgvAllocation":
		return LoadingLgvAllocation, true
	case "Loading":
		return LoadingLoading, true
	case "Suspended":
		return LoadingSuspended, true
	case "Completed":
		return LoadingCompleted, true
	case "WaitingForExit":
		return LoadingWaitingForExit, true
	case "CancelledShipment":
		return LoadingCancelledShipment, true
	case "StartedWithAnticipation":
		return LoadingStartedWithAnticipation, true
	default:
		return LoadingIdle, false
	}
}

func (s LoadingStatus) String() string {
	switch s {
	case LoadingCSO:
		return "CSO"
	case LoadingWhseInspection:
		return "WhseInspection"
	case LoadingLgvAllocation:
		return "LgvAllocation"
	case LoadingLoading:
		return "Loading"
	case LoadingSuspended:
		return "Suspended"
	case LoadingCompleted:
		return "Completed"
	case LoadingWaitingForExit:
		return "WaitingForExit"
	case LoadingCancelledShipment:
		return "CancelledShipment"
	case LoadingStartedWithAnticipation:
		return "StartedWithAnticipation"
	default:
		return "Idle"
	}
}

// DerivedDoorState projects a loading status onto the door state machine.
// Unmapped statuses preserve the prior door state.
func (s LoadingStatus) DerivedDoorState(prior DoorState) (DoorState, bool) {
	switch s {
	case LoadingIdle:
		return DoorUnassigned, true
	case LoadingCSO:
		return DoorAssigned, true
	case LoadingWhseInspection:
		return DoorDriverCheckedIn, true
	case LoadingLgvAllocation:
		return DoorReady, true
	case LoadingLoading:
		return DoorLoading, true
	case LoadingCompleted:
		return DoorLoadingCompleted, true
	case LoadingWaitingForExit:
		return DoorWaitingForExit, true
	default:
		return prior, false
	}
}

type ManualMode int

const (
	ManualModeDisabled ManualMode = iota
	ManualModeEnabled
)

type DockLockState int

const (
	DockLockDisengaged DockLockState = iota
	DockLockEngaged
)

type DoorPosition int

const (
	DoorClosed DoorPosition = iota
	DoorOpen
)

type LevelerPosition int

const (
	LevelerStored LevelerPosition = iota
	LevelerExtended
)

type FaultState int

const (
	NoFault FaultState = iota
	FaultPresent
)

// RestraintState tracks the vehicle restraint's locking motion, distinct
// from DockLockState which reflects the engaged/disengaged end state.
type RestraintState int

const (
	RestraintUnlocked RestraintState = iota
	RestraintUnlocking
	RestraintLocking
	RestraintLocked
)

type TrailerPositionState int

const (
	TrailerPositionProper TrailerPositionState = iota
	TrailerPositionImproper
)

// LoadTypeState distinguishes a preloaded trailer from one loaded live;
// carried through to ConsolidatedEvent.IsPreload.
type LoadTypeState int

const (
	LoadTypeLiveLoad LoadTypeState = iota
	LoadTypePreload
)

// Sensor is one entry of a DockDoor's fixed sensor map.
type Sensor struct {
	CurrentValue *int
	PreviousValue *int
	LastUpdated  time.Time
}

// SensorTagNames is the fixed set of sensor tags applied to every door.
var SensorTagNames = []string{
	"AUTO_DISENGAGING", "AUTO_ENGAGING", "FAULT_PRESENCE", "FAULT_TRAILER_DOORS",
	"RH_DOCK_READY", "RH_DOKLOCK_FAULT", "RH_DOOR_FAULT", "RH_DOOR_OPEN",
	"RH_ESTOP", "RH_LEVELER_FAULT", "RH_LEVELR_READY", "RH_MANUAL_MODE",
	"RH_RESTRAINT_ENGAGED", "TRAILER_ANGLE", "TRAILER_AT_DOOR",
	"TRAILER_CENTERING", "TRAILER_DISTANCE",
}

// DockDoor is the unit of state owned by the door repository.
type DockDoor struct {
	PlantID string
	DockName string
	DockIP  string

	DoorState      DoorState
	TrailerState   TrailerState
	LoadingStatus  LoadingStatus
	ManualMode     ManualMode
	DockLockState  DockLockState
	DoorPosition   DoorPosition
	LevelerPosition LevelerPosition
	FaultState     FaultState
	RestraintState RestraintState
	TrailerPosition TrailerPositionState
	LoadType       LoadTypeState
	IsPreload      bool

	DoorFault       bool
	DockLockFault   bool
	LevelerFault    bool
	TrailerDoorFault bool
	EmergencyStop   bool

	PreviousDoorState     DoorState
	PreviousTrailerState  TrailerState
	PreviousLoadingStatus LoadingStatus

	LastUpdated          time.Time
	TrailerStateChanged  time.Time
	DockingTime          *time.Time
	LastDockReadyTime    *time.Time
	ShipmentStartedDttm  *time.Time
	DockAssignment       *time.Time

	CurrentShipment        *string
	PreviousShipment       *string
	AssignmentDttm         *time.Time
	UnassignmentDttm       *time.Time
	PreviousCompletedDttm  *time.Time
	WmsShipmentStatus      string

	Sensors map[string]Sensor

	WmsEvents []WmsEvent
}

// Clone returns a deep-enough copy for the repository's snapshot-on-read
// contract: callers may mutate the copy freely without affecting the
// canonical entry.
func (d DockDoor) Clone() DockDoor {
	clone := d
	clone.Sensors = make(map[string]Sensor, len(d.Sensors))
	for k, v := range d.Sensors {
		clone.Sensors[k] = v
	}
	clone.WmsEvents = append([]WmsEvent(nil), d.WmsEvents...)
	return clone
}

// DoorSnapshot is the read-only view of a DockDoor rules operate over.
type DoorSnapshot = DockDoor

// WmsEvent is one raw row from the WMS event stream.
type WmsEvent struct {
	Plant         string
	DockName      string
	ShipmentID    string
	LogDttm       time.Time
	MessageSource string
	MessageType   WmsMessageType
	MessageTypeID int
	MessageNotes  string
	ResultCode    int
}

// WmsMessageType enumerates the WMS event-stream message types.
type WmsMessageType string

const (
	MsgStartedShipment         WmsMessageType = "STARTED_SHIPMENT"
	MsgSuspendedShipment       WmsMessageType = "SUSPENDED_SHIPMENT"
	MsgCancelledShipment       WmsMessageType = "CANCELLED_SHIPMENT"
	MsgResumedShipment         WmsMessageType = "RESUMED_SHIPMENT"
	MsgUpdatedPriority         WmsMessageType = "UPDATED_PRIORITY"
	MsgSdmLoadPlan             WmsMessageType = "SDM_LOAD_PLAN"
	MsgShipmentForcedClosed    WmsMessageType = "SHIPMENT_FORCED_CLOSED"
	MsgLoadQtyAdjusted         WmsMessageType = "LOAD_QTY_ADJUSTED"
	MsgSdmCheckIn              WmsMessageType = "SDM_CHECK_IN"
	MsgSdmTrailerRejection     WmsMessageType = "SDM_TRAILER_REJECTION"
	MsgDockAssignment          WmsMessageType = "DOCK_ASSIGNMENT"
	MsgLgvStartLoading         WmsMessageType = "LGV_START_LOADING"
	MsgFirstDrop               WmsMessageType = "FIRST_DROP"
	MsgCompletedLoad           WmsMessageType = "COMPLETED_LOAD"
	MsgCheckout                WmsMessageType = "CHECKOUT"
	MsgTrkPtrn                 WmsMessageType = "TRK_PTRN"
	MsgApptUpdate              WmsMessageType = "APPT_UPDATE"
	MsgProcTrip                WmsMessageType = "PROCTRIP"
	MsgUnknown                 WmsMessageType = "UNKNOWN"
)

// ParseWmsMessageType maps a raw message_type column value to the known
// enumerant, falling through to MsgUnknown.
func ParseWmsMessageType(raw string) WmsMessageType {
	switch WmsMessageType(raw) {
	case MsgStartedShipment, MsgSuspendedShipment, MsgCancelledShipment, MsgResumedShipment,
		MsgUpdatedPriority, MsgSdmLoadPlan, MsgShipmentForcedClosed, MsgLoadQtyAdjusted,
		MsgSdmCheckIn, MsgSdmTrailerRejection, MsgDockAssignment, MsgLgvStartLoading,
		MsgFirstDrop, MsgCompletedLoad, MsgCheckout, MsgTrkPtrn, MsgApptUpdate, MsgProcTrip:
		return WmsMessageType(raw)
	default:
		return MsgUnknown
	}
}

// userCarryingMessageTypes is the fixed set WmsEventsRule consults to decide
// whether an audit row's ID_USER column is populated from message_notes.
var userCarryingMessageTypes = map[WmsMessageType]bool{
	MsgSuspendedShipment: true,
	MsgCancelledShipment: true,
	MsgResumedShipment:   true,
}

// CarriesUser reports whether this message type's notes field encodes a
// user name as its first dash-separated token.
func (t WmsMessageType) CarriesUser() bool {
	return userCarryingMessageTypes[t]
}

// DockEventKind tags the DockEvent sum type.
type DockEventKind int

const (
	EventDockAssigned DockEventKind = iota
	EventDockUnassigned
	EventTrailerDocked
	EventTrailerDeparted
	EventLoadingStarted
	EventLoadingCompleted
	EventSensorChanged
	EventDoorStateChanged
	EventLoadingStatusChanged
	EventTrailerStateChanged
	EventShipmentAssigned
	EventShipmentUnassigned
	EventWmsEvent
)

// DockEvent is the tagged-variant event carried on the events channel.
// Kind-specific payload fields are zero-valued when not applicable to the
// kind; Apply/handler code switches on Kind rather than type-asserting.
type DockEvent struct {
	Kind      DockEventKind
	Plant     string
	Door      string
	Timestamp time.Time

	SensorName string
	OldInt     *int
	NewInt     *int

	OldDoorState DoorState
	NewDoorState DoorState

	OldLoadingStatus LoadingStatus
	NewLoadingStatus LoadingStatus

	OldTrailerState TrailerState
	NewTrailerState TrailerState

	NewShipment      *string
	PreviousShipment *string

	Wms WmsEvent
}

// AuditRecord is the uniform 11-column row persisted to the audit table.
type AuditRecord struct {
	LogDttm            time.Time
	Plant              string
	DoorName           string
	ShipmentID         *string
	EventType          string
	Success            bool
	Notes              string
	User               *string
	Severity           int
	PreviousState      *string
	PreviousStateDttm  *time.Time
}

// AlertKindTag tags the AlertKind sum type.
type AlertKindTag int

const (
	AlertDockReady AlertKindTag = iota
	AlertManualMode
	AlertSuspendedDoor
	AlertLongLoadingStart
	AlertShipmentStartedLoadNotReady
	AlertTrailerHostage
	AlertTrailerPatternIssue
	AlertManualInterventionTimeout
	AlertTrailerDockedNotStarted
)

// AlertKind is the tagged-variant alert payload, parallel to AuditRecord but
// targeting human channels.
type AlertKind struct {
	Tag        AlertKindTag
	DoorName   string
	ShipmentID *string
	Duration   *time.Duration
	Reason     string
	Severity   int
	Extra      map[string]string
}

// OutcomeKind tags the Outcome sum type returned by Rule.Apply.
type OutcomeKind int

const (
	OutcomeAlert OutcomeKind = iota
	OutcomeStateTransition
	OutcomeLog
	OutcomeDbInsert
	OutcomeConsolidatedUpdate
)

// Outcome is one effect a rule requests of the event handler.
type Outcome struct {
	Kind             OutcomeKind
	Alert            AlertKind
	NewDoorState     DoorState
	Log              AuditRecord
	DbInsert         AuditRecord
	Consolidated     ConsolidatedEvent
}

// ConsolidatedEvent is the per-shipment timing summary, keyed by
// (plant, door, shipment_id), inserted once on the LGV_START_LOADING
// terminal marker.
type ConsolidatedEvent struct {
	Plant      string
	DoorName   string
	ShipmentID int

	ShipmentAssigned *time.Time
	DockAssignment   *time.Time
	TrailerDocking   *time.Time
	StartedShipment  *time.Time
	LgvStartLoading  *time.Time
	DockReady        *time.Time

	DockingTimeMinutes    *float64
	InspectionTimeMinutes *float64
	EnqueuedTimeMinutes   *float64

	IsPreload bool
}

// Key identifies the in-memory aggregation slot this event belongs to.
type ConsolidatedKey struct {
	Plant      string
	DoorName   string
	ShipmentID int
}

func (c ConsolidatedEvent) Key() ConsolidatedKey {
	return ConsolidatedKey{Plant: c.Plant, DoorName: c.DoorName, ShipmentID: c.ShipmentID}
}

// SensorReading is produced by the PLC poller: one per
// (plant, door, sensor) tuple.
type SensorReading struct {
	Plant      string
	Door       string
	DoorIP     string
	SensorName string
	Value      int
	Timestamp  time.Time
}

// WmsDoorStatus is one row of the periodically polled door-status
// snapshot.
type WmsDoorStatus struct {
	Plant             string
	DoorName          string
	AssignedShipment  *string
	PreviousShipment  *string
	LoadingStatus     string
	WmsShipmentStatus string
	AssignmentDttm    *time.Time
	LogDttm           time.Time
}
