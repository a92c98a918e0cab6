package alerting

import (
	"fmt"
	"strings"
	"time"

	"dockmonitor/pkg/types"
)

var alertEmoji = map[types.AlertKindTag]string{
	types.AlertDockReady:                   "\U0001F7E2", // 🟢
	types.AlertManualMode:                  "\U0001F6A7", // 🚧
	types.AlertSuspendedDoor:               "⏸️", // ⏸️
	types.AlertLongLoadingStart:            "⏱️", // ⏱️
	types.AlertShipmentStartedLoadNotReady: "⚠️", // ⚠️
	types.AlertTrailerHostage:              "\U0001F6A8", // 🚨
	types.AlertTrailerPatternIssue:         "\U0001F4CA", // 📊
	types.AlertManualInterventionTimeout:   "❌",       // ❌
	types.AlertTrailerDockedNotStarted:     "\U0001F6D1", // 🛑
}

var alertTypeName = map[types.AlertKindTag]string{
	types.AlertDockReady:                   "DOCK_READY",
	types.AlertManualMode:                  "MANUAL_MODE",
	types.AlertSuspendedDoor:               "SUSPENDED_DOOR",
	types.AlertLongLoadingStart:            "LONG_LOADING_START",
	types.AlertShipmentStartedLoadNotReady: "SHIPMENT_STARTED_LOAD_NOT_READY",
	types.AlertTrailerHostage:              "TRAILER_HOSTAGE",
	types.AlertTrailerPatternIssue:         "TRAILER_PATTERN_ISSUE",
	types.AlertManualInterventionTimeout:   "MANUAL_INTERVENTION_TIMEOUT",
	types.AlertTrailerDockedNotStarted:     "TRAILER_DOCKED_NOT_STARTED",
}

// FormatAlert builds the emoji-prefixed single-line webhook message:
// "<emoji> <TYPE>: Door <name>[ - Shipment ID: <id>][ - Duration:
// <h m s>][ - <key>: <value>]...".
func FormatAlert(alert types.AlertKind) string {
	var b strings.Builder

	b.WriteString(alertEmoji[alert.Tag])
	b.WriteByte(' ')
	b.WriteString(alertTypeName[alert.Tag])
	b.WriteString(": Door ")
	b.WriteString(alert.DoorName)

	if alert.ShipmentID != nil {
		fmt.Fprintf(&b, " - Shipment ID: %s", *alert.ShipmentID)
	}
	if alert.Duration != nil {
		fmt.Fprintf(&b, " - Duration: %s", formatDuration(*alert.Duration))
	}
	if alert.Reason != "" {
		fmt.Fprintf(&b, " - Reason: %s", alert.Reason)
	}
	for _, k := range sortedKeys(alert.Extra) {
		fmt.Fprintf(&b, " - %s: %s", k, alert.Extra[k])
	}

	return b.String()
}

// formatDuration renders a duration as "1h 3m 5s", omitting zero leading
// components.
func formatDuration(d time.Duration) string {
	total := int64(d.Seconds())
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if h > 0 || m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))
	return strings.Join(parts, " ")
}

// FormatTimestamp renders a timestamp as "YYYY-MM-DD HH:MM:SS".
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
