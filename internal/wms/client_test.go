package wms

import (
	"context"
	"io"
	"testing"

	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSubstitutePlaceholders(t *testing.T) {
	template := "SELECT * FROM EVENTS WHERE SHIPMENT = '{}' AND DOCK = '{|}' AND PLANT = '{#}'"
	got := SubstitutePlaceholders(template, "123", "D1", "P1")
	assert.Equal(t, "SELECT * FROM EVENTS WHERE SHIPMENT = '123' AND DOCK = 'D1' AND PLANT = 'P1'", got)
}

func TestSubstitutePlaceholdersRepeats(t *testing.T) {
	template := "{#}/{#}/{|}"
	assert.Equal(t, "P1/P1/D2", SubstitutePlaceholders(template, "", "D2", "P1"))
}

func TestSubstitutePlaceholdersNoMarkers(t *testing.T) {
	template := "SELECT 1"
	assert.Equal(t, "SELECT 1", SubstitutePlaceholders(template, "a", "b", "c"))
}

func TestClientUnknownPlant(t *testing.T) {
	client := NewClient(types.Settings{
		Plants: []types.PlantSettings{{PlantID: "P1"}},
	}, quietLogger())
	defer client.Close()

	_, err := client.FetchDoorStatus(context.Background(), "P9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestClientPoolReuse(t *testing.T) {
	client := NewClient(types.Settings{
		Plants: []types.PlantSettings{{
			PlantID: "P1",
			LgvWmsDatabase: types.DatabaseSettings{
				Host: "wms.local", Port: 1433, DatabaseName: "WMS",
				Username: "u", Password: "p",
			},
		}},
	}, quietLogger())
	defer client.Close()

	first, err := client.pool("P1")
	require.NoError(t, err)
	second, err := client.pool("P1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
