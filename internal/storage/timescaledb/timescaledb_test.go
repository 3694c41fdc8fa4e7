package timescaledb

import (
	"testing"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
)

func TestRows(t *testing.T) {
	table := types.NewSiteTable("miryang-1", []types.Field{types.ActivePower, types.GlobalHorizontalRadiation})
	ts := time.Date(2021, 3, 4, 11, 0, 0, 0, time.UTC)
	r := types.NewReading("miryang-1", ts)
	r.StationID = "288"
	r.Set(types.ActivePower, 42.5)
	r.Set(types.WeatherTemperature, 12)
	table.Append(r)

	rows := Rows(table, "run-1")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	got := rows[0]
	if !got.Time.Equal(ts) || got.SiteID != "miryang-1" || got.StationID != "288" || got.RunID != "run-1" {
		t.Errorf("row identity = %+v", got)
	}
	if got.ActivePower == nil || *got.ActivePower != 42.5 {
		t.Errorf("ActivePower = %v, want 42.5", got.ActivePower)
	}
	if got.GlobalHorizontalRadiation != nil {
		t.Errorf("missing GHI stored as %v, want NULL", *got.GlobalHorizontalRadiation)
	}
	if got.WeatherTemperature != nil {
		t.Errorf("temperature outside the column set stored as %v", *got.WeatherTemperature)
	}
}

func TestTableName(t *testing.T) {
	if got := (SiteReading{}).TableName(); got != "pv_site_readings" {
		t.Errorf("TableName = %q", got)
	}
}
