// Package types - Configuration data structures
package types

// Settings is the fully materialized configuration tree, built by
// internal/config from a layered YAML file set plus APP__-prefixed
// environment overrides, nesting yaml-tagged sub-structs one per concern.
type Settings struct {
	Database       DatabaseSettings   `yaml:"database"`
	Plc            PlcSettings        `yaml:"plc"`
	Logging        LoggingSettings    `yaml:"logging"`
	RabbitMQ       RabbitMQSettings   `yaml:"rabbitmq"`
	Queries        QuerySettings      `yaml:"queries"`
	Plants         []PlantSettings    `yaml:"plants"`
	Alerts         AlertSettings      `yaml:"alerts"`
	Monitoring     MonitoringSettings `yaml:"monitoring"`
	BatchSize      int                `yaml:"batch_size"`
	RuleConfigFile string             `yaml:"rule_config_file"`
	MetricsAddr    string             `yaml:"metrics_addr"`
}

// DatabaseSettings describes the local audit database connection, and
// doubles (under a different struct instance) for each plant's WMS
// database. Windows-auth paths omit the user/pass segment entirely.
type DatabaseSettings struct {
	Host         string `yaml:"host"`
	Port         uint16 `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	DatabaseName string `yaml:"database_name"`
	AppName      string `yaml:"app_name"`
	WinAuth      bool   `yaml:"win_auth"`
	Trusted      bool   `yaml:"trusted"`
}

// ConnectionString builds the sqlserver:// DSN go-mssqldb accepts.
func (d DatabaseSettings) ConnectionString() string {
	if d.WinAuth {
		return "sqlserver://" + d.Host + ":" + portString(d.Port) + "?database=" + d.DatabaseName + "&trusted_connection=true"
	}
	return "sqlserver://" + d.Username + ":" + d.Password + "@" + d.Host + ":" + portString(d.Port) + "?database=" + d.DatabaseName
}

func portString(p uint16) string {
	const digits = "0123456789"
	if p == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = digits[p%10]
		p /= 10
	}
	return string(buf[i:])
}

// PlcSettings tunes the poller's timing.
type PlcSettings struct {
	PollIntervalSecs int `yaml:"poll_interval_secs"`
	TimeoutMs        int `yaml:"timeout_ms"`
	MaxRetries       int `yaml:"max_retries"`
}

// LoggingSettings selects logrus's level and output destination.
type LoggingSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	Path  string `yaml:"path"`
}

// RabbitMQSettings is unused by the core pipeline; carried for parity with
// deployments that still route alerts through a broker.
type RabbitMQSettings struct {
	URL string `yaml:"url"`
}

// QuerySettings holds the SQL templates used against the WMS database.
// WmsRackSpace is loaded but not consumed by any current rule; deployments
// carry it in their config files.
type QuerySettings struct {
	WmsDoorStatus string `yaml:"wms_door_status"`
	WmsEvents     string `yaml:"wms_events"`
	WmsRackSpace  string `yaml:"wms_rack_space"`
}

// PlantSettings is one tenant: its WMS database, webhook, and door/tag
// configuration.
type PlantSettings struct {
	PlantID         string           `yaml:"plant_id"`
	AlertWebhookURL string           `yaml:"alert_webhook_url"`
	LgvWmsDatabase  DatabaseSettings `yaml:"lgv_wms_database"`
	DockDoors       DockDoorSettings `yaml:"dock_doors"`
}

type DockDoorSettings struct {
	DockDoorConfig []DockDoorConfig `yaml:"dock_door_config"`
	DockPlcTags    []DockPlcTag     `yaml:"dock_plc_tags"`
}

type DockDoorConfig struct {
	DockName string `yaml:"dock_name"`
	DockIP   string `yaml:"dock_ip"`
}

type DockPlcTag struct {
	TagName string `yaml:"tag_name"`
	Address string `yaml:"address"`
}

// AlertThresholds pairs an initial firing delay with a repeat cooldown
// (seconds), shared by every rule-driven alert category.
type AlertThresholds struct {
	InitialThreshold uint64 `yaml:"initial_threshold"`
	RepeatInterval   uint64 `yaml:"repeat_interval"`
}

// AlertSettings tunes the rule-driven alert categories. ManualMode and
// ManualIntervention cover the two alert kinds without a dedicated slot in
// the original's config shape; unset they fall back to the 300 s default.
type AlertSettings struct {
	SuspendedDoor               AlertThresholds `yaml:"suspended_door"`
	TrailerPattern              AlertThresholds `yaml:"trailer_pattern"`
	LongLoadingStart            AlertThresholds `yaml:"long_loading_start"`
	ShipmentStartedLoadNotReady AlertThresholds `yaml:"shipment_started_load_not_ready"`
	TrailerHostage              AlertThresholds `yaml:"trailer_hostage"`
	TrailerDocked               AlertThresholds `yaml:"trailer_docked"`
	DockReady                   AlertThresholds `yaml:"dock_ready"`
	TrailerUndocked             AlertThresholds `yaml:"trailer_undocked"`
	ManualMode                  AlertThresholds `yaml:"manual_mode"`
	ManualIntervention          AlertThresholds `yaml:"manual_intervention"`
}

// MonitoringThresholds pairs the alert threshold and repeat interval used
// by one monitoring-queue item kind.
type MonitoringThresholds struct {
	AlertThreshold uint64 `yaml:"alert_threshold"`
	RepeatInterval uint64 `yaml:"repeat_interval"`
}

// MonitoringSettings tunes the monitoring queue worker.
type MonitoringSettings struct {
	CheckInterval               uint64               `yaml:"check_interval"`
	SuspendedShipment           MonitoringThresholds `yaml:"suspended_shipment"`
	TrailerDockedNotStarted     MonitoringThresholds `yaml:"trailer_docked_not_started"`
	ShipmentStartedLoadNotReady MonitoringThresholds `yaml:"shipment_started_load_not_ready"`
	TrailerHostage              MonitoringThresholds `yaml:"trailer_hostage"`
}

// GetPlant linear-scans Plants by plant_id.
func (s Settings) GetPlant(plantID string) (PlantSettings, bool) {
	for _, p := range s.Plants {
		if p.PlantID == plantID {
			return p, true
		}
	}
	return PlantSettings{}, false
}
