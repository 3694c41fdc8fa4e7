package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetRow is the Parquet schema of a SiteTable row. Time is the naive
// local timestamp in milliseconds.
type parquetRow struct {
	Time                      int64    `parquet:"name=timestamp,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	SiteID                    string   `parquet:"name=site_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	ActivePower               *float64 `parquet:"name=Active_Power,type=DOUBLE,repetitiontype=OPTIONAL"`
	GlobalHorizontalRadiation *float64 `parquet:"name=Global_Horizontal_Radiation,type=DOUBLE,repetitiontype=OPTIONAL"`
	WeatherTemperature        *float64 `parquet:"name=Weather_Temperature_Celsius,type=DOUBLE,repetitiontype=OPTIONAL"`
	WeatherRelativeHumidity   *float64 `parquet:"name=Weather_Relative_Humidity,type=DOUBLE,repetitiontype=OPTIONAL"`
	WindSpeed                 *float64 `parquet:"name=Wind_Speed,type=DOUBLE,repetitiontype=OPTIONAL"`
}

// ParquetSink writes <site>.parquet next to the CSV table.
type ParquetSink struct {
	Dir string
}

// Path returns the Parquet path for site.
func (s *ParquetSink) Path(siteID string) string {
	return filepath.Join(s.Dir, siteID+".parquet")
}

func (s *ParquetSink) Name() string {
	return "parquet"
}

func (s *ParquetSink) WriteSiteTable(_ context.Context, t *types.SiteTable) error {
	return replaceFile(s.Path(t.SiteID), func(f *os.File) error {
		return writeParquet(f, t)
	})
}

func (s *ParquetSink) Close() error {
	return nil
}

func writeParquet(f *os.File, t *types.SiteTable) error {
	pw, err := writer.NewParquetWriterFromWriter(f, new(parquetRow), 1)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	emit := make(map[types.Field]bool, len(t.Fields))
	for _, fld := range t.Fields {
		emit[fld] = true
	}
	value := func(r types.Reading, fld types.Field) *float64 {
		v := r.Get(fld)
		if !emit[fld] || types.IsMissing(v) {
			return nil
		}
		return &v
	}

	for _, r := range t.Rows {
		row := parquetRow{
			Time:                      r.Timestamp.UnixMilli(),
			SiteID:                    t.SiteID,
			ActivePower:               value(r, types.ActivePower),
			GlobalHorizontalRadiation: value(r, types.GlobalHorizontalRadiation),
			WeatherTemperature:        value(r, types.WeatherTemperature),
			WeatherRelativeHumidity:   value(r, types.WeatherRelativeHumidity),
			WindSpeed:                 value(r, types.WindSpeed),
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to stop parquet writer: %w", err)
	}
	return nil
}
