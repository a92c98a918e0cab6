// Package audit persists AuditRecords and ConsolidatedEvents to the local
// SQL Server database over database/sql + go-mssqldb.
package audit

import (
	"context"
	"database/sql"
	"fmt"

	"dockmonitor/internal/metrics"
	"dockmonitor/pkg/types"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/sirupsen/logrus"
)

const insertAuditSQL = `INSERT INTO dbo.AUDIT_LOG
	(LOG_DTTM, PLANT, DOOR_NAME, SHIPMENT_ID, EVENT_TYPE, SUCCESS, NOTES, ID_USER, SEVERITY, PREVIOUS_STATE, PREVIOUS_STATE_DTTM)
	VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11)`

const insertConsolidatedSQL = `INSERT INTO dbo.CONSOLIDATED_EVENT
	(PLANT, DOOR_NAME, SHIPMENT_ID, DOCKING_TIME_MINUTES, INSPECTION_TIME_MINUTES, ENQUEUED_TIME_MINUTES,
	 SHIPMENT_ASSIGNED, DOCK_ASSIGNMENT, TRAILER_DOCKING, STARTED_SHIPMENT, LGV_START_LOADING, DOCK_READY, IS_PRELOAD)
	VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12, @p13)`

// Store implements types.AuditStore over a pooled *sql.DB connection.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewStore opens a connection pool against the audit database DSN. The
// actual dial is lazy (database/sql convention); Ping is left to the
// caller via a health check if desired.
func NewStore(dsn string, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// InsertAuditRecords writes a batch of rows as prepared-statement inserts
// inside one transaction. Failures are returned, not swallowed: the caller
// decides whether to retry.
func (s *Store) InsertAuditRecords(ctx context.Context, records []types.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertAuditSQL)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		successFlag := 0
		if rec.Success {
			successFlag = 1
		}
		if _, err := stmt.ExecContext(ctx, rec.LogDttm, rec.Plant, rec.DoorName, rec.ShipmentID,
			rec.EventType, successFlag, rec.Notes, rec.User, rec.Severity, rec.PreviousState, rec.PreviousStateDttm); err != nil {
			metrics.RecordDbInsert("failed", len(records))
			return fmt.Errorf("insert audit row (%s/%s/%s): %w", rec.Plant, rec.DoorName, rec.EventType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordDbInsert("failed", len(records))
		return err
	}
	metrics.RecordDbInsert("success", len(records))
	return nil
}

// InsertConsolidatedEvent writes the one-time-per-shipment timing
// summary.
func (s *Store) InsertConsolidatedEvent(ctx context.Context, event types.ConsolidatedEvent) error {
	_, err := s.db.ExecContext(ctx, insertConsolidatedSQL,
		event.Plant, event.DoorName, event.ShipmentID,
		event.DockingTimeMinutes, event.InspectionTimeMinutes, event.EnqueuedTimeMinutes,
		event.ShipmentAssigned, event.DockAssignment, event.TrailerDocking,
		event.StartedShipment, event.LgvStartLoading, event.DockReady, event.IsPreload)
	if err != nil {
		return fmt.Errorf("insert consolidated event (%s/%s/%d): %w", event.Plant, event.DoorName, event.ShipmentID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
