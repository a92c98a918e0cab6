// Package wms queries each plant's warehouse-management database: the
// periodically polled door-status snapshot and the append-only shipment
// event stream. Queries are configured SQL templates with positional
// placeholders ({} shipment, {|} dock, {#} plant) substituted per call.
package wms

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	apperrors "dockmonitor/pkg/errors"
	"dockmonitor/pkg/types"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/sirupsen/logrus"
)

// Client holds one lazily opened connection pool per plant WMS database.
type Client struct {
	queries types.QuerySettings
	plants  map[string]types.PlantSettings
	logger  *logrus.Logger

	mu    sync.Mutex
	pools map[string]*sql.DB
}

func NewClient(cfg types.Settings, logger *logrus.Logger) *Client {
	plants := make(map[string]types.PlantSettings, len(cfg.Plants))
	for _, p := range cfg.Plants {
		plants[p.PlantID] = p
	}
	return &Client{
		queries: cfg.Queries,
		plants:  plants,
		logger:  logger,
		pools:   make(map[string]*sql.DB),
	}
}

// pool returns the plant's connection pool, opening it on first use.
// database/sql defers the actual dial to the first query.
func (c *Client) pool(plantID string) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if db, ok := c.pools[plantID]; ok {
		return db, nil
	}

	plant, ok := c.plants[plantID]
	if !ok {
		return nil, apperrors.NotFound("wms", "pool", "plant not configured").
			WithMetadata("plant", plantID)
	}

	db, err := sql.Open("sqlserver", plant.LgvWmsDatabase.ConnectionString())
	if err != nil {
		return nil, apperrors.TransientIO("wms", "pool", "failed to open WMS database").Wrap(err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	c.pools[plantID] = db
	return db, nil
}

// SubstitutePlaceholders fills a query template's positional markers.
func SubstitutePlaceholders(template, shipmentID, dockName, plantID string) string {
	q := strings.ReplaceAll(template, "{}", shipmentID)
	q = strings.ReplaceAll(q, "{|}", dockName)
	return strings.ReplaceAll(q, "{#}", plantID)
}

// FetchDoorStatus runs the configured door-status query for one plant. The
// template's result set must carry, in order: DOCK_NAME, ASSIGNED_SHIPMENT,
// LOADING_STATUS, WMS_SHIPMENT_STATUS, ASSIGNMENT_DTTM, LOG_DTTM.
func (c *Client) FetchDoorStatus(ctx context.Context, plantID string) ([]types.WmsDoorStatus, error) {
	db, err := c.pool(plantID)
	if err != nil {
		return nil, err
	}

	query := SubstitutePlaceholders(c.queries.WmsDoorStatus, "", "", plantID)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.TransientIO("wms", "FetchDoorStatus", "door status query failed").
			Wrap(err).WithMetadata("plant", plantID)
	}
	defer rows.Close()

	var out []types.WmsDoorStatus
	for rows.Next() {
		var (
			dockName       string
			shipment       sql.NullString
			loadingStatus  string
			wmsStatus      sql.NullString
			assignmentDttm sql.NullTime
			logDttm        sql.NullTime
		)
		if err := rows.Scan(&dockName, &shipment, &loadingStatus, &wmsStatus, &assignmentDttm, &logDttm); err != nil {
			c.logger.WithError(err).WithField("plant", plantID).Warn("skipping unreadable door status row")
			continue
		}

		status := types.WmsDoorStatus{
			Plant:             plantID,
			DoorName:          dockName,
			LoadingStatus:     loadingStatus,
			WmsShipmentStatus: wmsStatus.String,
			LogDttm:           time.Now(),
		}
		if shipment.Valid {
			s := shipment.String
			status.AssignedShipment = &s
		}
		if assignmentDttm.Valid {
			ts := assignmentDttm.Time
			status.AssignmentDttm = &ts
		}
		if logDttm.Valid {
			status.LogDttm = logDttm.Time
		}
		out = append(out, status)
	}
	return out, rows.Err()
}

// FetchEvents runs the configured event-stream query for one assigned
// shipment. The result set must carry, in order: PLANT, DOCK_NAME,
// SHIPMENT_ID, LOG_DTTM, MESSAGE_SOURCE, MESSAGE_TYPE, MESSAGE_TYPE_ID,
// MESSAGE_NOTES, RESULT_CODE.
func (c *Client) FetchEvents(ctx context.Context, plantID, dockName, shipmentID string) ([]types.WmsEvent, error) {
	db, err := c.pool(plantID)
	if err != nil {
		return nil, err
	}

	query := SubstitutePlaceholders(c.queries.WmsEvents, shipmentID, dockName, plantID)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.TransientIO("wms", "FetchEvents", "event query failed").
			Wrap(err).WithMetadata("plant", plantID).WithMetadata("shipment", shipmentID)
	}
	defer rows.Close()

	var out []types.WmsEvent
	for rows.Next() {
		var (
			plant         string
			dock          string
			shipment      string
			logDttm       sql.NullTime
			messageSource sql.NullString
			messageType   string
			messageTypeID int
			messageNotes  sql.NullString
			resultCode    int
		)
		if err := rows.Scan(&plant, &dock, &shipment, &logDttm, &messageSource, &messageType,
			&messageTypeID, &messageNotes, &resultCode); err != nil {
			c.logger.WithError(err).WithField("plant", plantID).Warn("skipping unreadable WMS event row")
			continue
		}

		event := types.WmsEvent{
			Plant:         plant,
			DockName:      dock,
			ShipmentID:    shipment,
			LogDttm:       time.Now(),
			MessageSource: messageSource.String,
			MessageType:   types.ParseWmsMessageType(messageType),
			MessageTypeID: messageTypeID,
			MessageNotes:  messageNotes.String,
			ResultCode:    resultCode,
		}
		if logDttm.Valid {
			event.LogDttm = logDttm.Time
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// Close releases every plant pool.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for plant, db := range c.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.pools, plant)
	}
	return firstErr
}
