// Package timescaledb stores cleaned SiteTables in a TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/pvreconcile/internal/database"
	"github.com/chrissnell/pvreconcile/internal/log"
	"github.com/chrissnell/pvreconcile/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

// SiteReading is one row of the pv_site_readings hypertable. Timestamps
// are the naive site-local hours of the SiteTable.
type SiteReading struct {
	Time                      time.Time `gorm:"column:time;primaryKey"`
	SiteID                    string    `gorm:"column:site_id;primaryKey"`
	StationID                 string    `gorm:"column:station_id"`
	ActivePower               *float64  `gorm:"column:active_power"`
	GlobalHorizontalRadiation *float64  `gorm:"column:global_horizontal_radiation"`
	WeatherTemperature        *float64  `gorm:"column:weather_temperature_celsius"`
	WeatherRelativeHumidity   *float64  `gorm:"column:weather_relative_humidity"`
	WindSpeed                 *float64  `gorm:"column:wind_speed"`
	RunID                     string    `gorm:"column:run_id"`
}

// TableName customizes the table name in the DB
func (SiteReading) TableName() string {
	return "pv_site_readings"
}

// Storage holds the connection to a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
	runID           string
}

// New connects to TimescaleDB and prepares the hypertable. runID is
// stamped on every row written.
func New(ctx context.Context, connectionString, runID string) (*Storage, error) {
	conn, err := database.CreateConnection(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		name string
		sql  string
	}{
		{"database table", createTableSQL},
		{"TimescaleDB extension", createExtensionSQL},
		{"hypertable", createHypertableSQL},
		{"site index", createSiteIndexSQL},
	}
	for _, s := range steps {
		log.Infof("creating %s...", s.name)
		if err := conn.WithContext(ctx).Exec(s.sql).Error; err != nil {
			return nil, fmt.Errorf("could not create %s: %w", s.name, err)
		}
	}

	return &Storage{TimescaleDBConn: conn, runID: runID}, nil
}

// Name identifies the sink in logs.
func (t *Storage) Name() string {
	return "timescaledb"
}

// WriteSiteTable upserts every row of table keyed on site and timestamp.
func (t *Storage) WriteSiteTable(ctx context.Context, table *types.SiteTable) error {
	rows := Rows(table, t.runID)
	if len(rows) == 0 {
		return nil
	}
	err := t.TimescaleDBConn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "site_id"}, {Name: "time"}},
			UpdateAll: true,
		}).
		CreateInBatches(rows, batchSize).Error
	if err != nil {
		return fmt.Errorf("could not store readings for site %s: %w", table.SiteID, err)
	}
	log.Infof("stored %d readings for site %s in TimescaleDB", len(rows), table.SiteID)
	return nil
}

// Close releases the connection pool.
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Rows converts a SiteTable into hypertable rows. Fields outside the
// table's column set and missing values are stored as NULL.
func Rows(table *types.SiteTable, runID string) []SiteReading {
	emit := make(map[types.Field]bool, len(table.Fields))
	for _, f := range table.Fields {
		emit[f] = true
	}
	value := func(r types.Reading, f types.Field) *float64 {
		v := r.Get(f)
		if !emit[f] || types.IsMissing(v) {
			return nil
		}
		return &v
	}

	out := make([]SiteReading, 0, len(table.Rows))
	for _, r := range table.Rows {
		out = append(out, SiteReading{
			Time:                      r.Timestamp,
			SiteID:                    table.SiteID,
			StationID:                 r.StationID,
			ActivePower:               value(r, types.ActivePower),
			GlobalHorizontalRadiation: value(r, types.GlobalHorizontalRadiation),
			WeatherTemperature:        value(r, types.WeatherTemperature),
			WeatherRelativeHumidity:   value(r, types.WeatherRelativeHumidity),
			WindSpeed:                 value(r, types.WindSpeed),
			RunID:                     runID,
		})
	}
	return out
}
