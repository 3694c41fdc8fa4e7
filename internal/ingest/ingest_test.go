package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseHour(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"05 시", 5, false},
		{"05:00", 5, false},
		{"5", 5, false},
		{" 23시", 23, false},
		{"24", 0, true},
		{"total", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseHour(tt.label)
		if tt.wantErr {
			assert.Error(t, err, tt.label)
			continue
		}
		assert.NoError(t, err, tt.label)
		assert.Equal(t, tt.want, got, tt.label)
	}
}

func TestCellsNumber(t *testing.T) {
	c := NewCells([]string{"#N/A"})

	for _, tok := range []string{"", "-", " ", "#N/A", "NaN"} {
		v, err := c.Number(tok)
		assert.NoError(t, err, tok)
		assert.True(t, types.IsMissing(v), "token %q should read as missing", tok)
	}

	v, err := c.Number("1,234.5")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, v)

	v, err = c.Number("-3")
	require.NoError(t, err)
	assert.Equal(t, -3.0, v)

	v, err = c.Number("abc")
	assert.Error(t, err)
	assert.True(t, types.IsMissing(v))
}

func TestParseTimestampFallsBack(t *testing.T) {
	want := time.Date(2022, 7, 1, 10, 0, 0, 0, time.UTC)

	got, err := ParseTimestamp("01/07/2022 10:00", "02/01/2006 15:04")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseTimestamp("2022-07-01 10:00", "02/01/2006 15:04")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseTimestamp("yesterday", "")
	assert.Error(t, err)
}

func hourlyInput(dir string) config.InputData {
	return config.InputData{
		Dir:              dir,
		Pattern:          "*.csv",
		Format:           config.FormatCSV,
		HeaderRow:        1,
		SkipRows:         1,
		HourColumn:       "시간",
		DateFromFilename: `_(\d{8})\.csv$`,
		DateLayout:       "20060102",
		AlignMode:        config.AlignHour,
		Columns:          map[types.Field]string{types.WeatherTemperature: "모듈온도"},
	}
}

const plantCSV = `발전 실적 보고서
시간,Site A,Site B,모듈온도
(kW),,,
00 시,0,0,21
01 시,-,0,20.5
02 시,"1,234",7,x
합계,1234,7,
`

func TestReadFileHourLabels(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plant_20220701.csv", plantCSV)

	p, err := NewPowerReader(hourlyInput(dir))
	require.NoError(t, err)

	f, err := p.ReadFile(path, config.SiteData{ID: "a", PowerColumn: "Site A"})
	require.NoError(t, err)

	date := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, []time.Time{date}, f.Dates())
	rows := f.Days[date]
	require.Len(t, rows, 3)
	assert.Equal(t, 1, f.BadRows, "total row has no hour")
	assert.Equal(t, 1, f.BadCells, "unparseable temperature")

	assert.Equal(t, date.Add(2*time.Hour), rows[2].Timestamp)
	assert.Equal(t, "a", rows[0].SiteID)
	assert.Equal(t, 0.0, rows[0].Get(types.ActivePower))
	assert.True(t, types.IsMissing(rows[1].Get(types.ActivePower)))
	assert.Equal(t, 1234.0, rows[2].Get(types.ActivePower))
	assert.Equal(t, 20.5, rows[1].Get(types.WeatherTemperature))
	assert.True(t, types.IsMissing(rows[2].Get(types.WeatherTemperature)))
	assert.True(t, types.IsMissing(rows[0].Get(types.GlobalHorizontalRadiation)))
}

func TestReadFileMissingPowerColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plant_20220701.csv", plantCSV)

	p, err := NewPowerReader(hourlyInput(dir))
	require.NoError(t, err)

	_, err = p.ReadFile(path, config.SiteData{ID: "c", PowerColumn: "Site C"})
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
	assert.Equal(t, path, pe.Path)
}

func TestReadFileWithoutDateInName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plant.csv", plantCSV)

	p, err := NewPowerReader(hourlyInput(dir))
	require.NoError(t, err)

	_, err = p.ReadFile(path, config.SiteData{ID: "a", PowerColumn: "Site A"})
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestReadFilePositional(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "inv_20220701.csv", "kW\n0\n1.5\n3\n")

	in := config.InputData{
		Dir:              dir,
		Pattern:          "*.csv",
		DateFromFilename: `_(\d{8})\.csv$`,
		DateLayout:       "20060102",
		AlignMode:        config.AlignPositional,
	}
	p, err := NewPowerReader(in)
	require.NoError(t, err)

	f, err := p.ReadFile(path, config.SiteData{ID: "inv1", PowerColumn: "kW"})
	require.NoError(t, err)
	date := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := f.Days[date]
	require.Len(t, rows, 3)
	assert.Equal(t, 1.5, rows[1].Get(types.ActivePower))
	for _, r := range rows {
		assert.Equal(t, date, r.Timestamp)
	}
}

func TestFilesUsesSitePattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_20220702.csv", "x\n")
	writeFile(t, dir, "a_20220701.csv", "x\n")
	writeFile(t, dir, "b_20220701.csv", "x\n")

	p, err := NewPowerReader(config.InputData{Dir: dir, Pattern: "*.csv"})
	require.NoError(t, err)

	files, err := p.Files(config.SiteData{ID: "a", Pattern: "a_*.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_20220701.csv"), filepath.Join(dir, "a_20220702.csv")}, files)

	files, err = p.Files(config.SiteData{ID: "b"})
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestReadTableXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.xlsx")

	f := excelize.NewFile()
	cells := [][]string{
		{"timestamp", "AP"},
		{"2022-07-01 10:00:00", "12.5"},
		{"2022-07-01 11:00:00", "-"},
	}
	for r, row := range cells {
		for c, v := range row {
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", name, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	in := config.InputData{Format: config.FormatXLSX, TimestampColumn: "timestamp", AlignMode: config.AlignHour}
	p, err := NewPowerReader(in)
	require.NoError(t, err)

	pf, err := p.ReadFile(path, config.SiteData{ID: "x", PowerColumn: "AP"})
	require.NoError(t, err)
	rows := pf.Days[time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)]
	require.Len(t, rows, 2)
	assert.Equal(t, 12.5, rows[0].Get(types.ActivePower))
	assert.Equal(t, 11, rows[1].Hour())
	assert.True(t, types.IsMissing(rows[1].Get(types.ActivePower)))
}

func TestReadTableBadFile(t *testing.T) {
	_, err := ReadTable(filepath.Join(t.TempDir(), "absent.csv"), Layout{Format: config.FormatCSV})
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))

	path := writeFile(t, t.TempDir(), "short.csv", "only\n")
	_, err = ReadTable(path, Layout{HeaderRow: 3})
	assert.True(t, errors.As(err, &pe))
}

const weatherCSV = `stn,tm,icsr,ta
108,2022-07-01 06:00,0.36,21.0
108,2022-07-01 05:00,0.0,20.1
108,2022-07-01 07:00,1.08,22.4
108,2022-07-02 00:00,0.0,19.0
`

func TestLoadWeatherCumulative(t *testing.T) {
	path := writeFile(t, t.TempDir(), "asos.csv", weatherCSV)
	w := config.WeatherData{
		Path:                 path,
		TimestampColumn:      "tm",
		TimestampLayout:      "2006-01-02 15:04",
		StationColumn:        "stn",
		CumulativeIrradiance: true,
		Columns: map[types.Field]string{
			types.GlobalHorizontalRadiation: "icsr",
			types.WeatherTemperature:        "ta",
		},
	}

	table, err := LoadWeather(w)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	day1 := table.Day(time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, day1, 3)
	assert.Equal(t, 5, day1[0].Hour(), "rows sorted by timestamp")
	assert.Equal(t, "108", day1[0].StationID)
	assert.True(t, types.IsMissing(day1[0].Get(types.GlobalHorizontalRadiation)))
	assert.InDelta(t, 100.0, day1[1].Get(types.GlobalHorizontalRadiation), 1e-9)
	assert.InDelta(t, 200.0, day1[2].Get(types.GlobalHorizontalRadiation), 1e-9)
	assert.Equal(t, 22.4, day1[2].Get(types.WeatherTemperature))

	day2 := table.Day(time.Date(2022, 7, 2, 0, 0, 0, 0, time.UTC))
	require.Len(t, day2, 1)
	assert.Equal(t, 0.0, day2[0].Get(types.GlobalHorizontalRadiation), "daily reset clips to zero")
}

func TestLoadWeatherDropsShortDays(t *testing.T) {
	path := writeFile(t, t.TempDir(), "asos.csv", weatherCSV)
	w := config.WeatherData{
		Path:            path,
		TimestampColumn: "tm",
		MinHoursPerDay:  2,
		Columns:         map[types.Field]string{types.WeatherTemperature: "ta"},
	}

	table, err := LoadWeather(w)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []time.Time{time.Date(2022, 7, 2, 0, 0, 0, 0, time.UTC)}, table.Dropped)
	assert.Empty(t, table.Day(time.Date(2022, 7, 2, 0, 0, 0, 0, time.UTC)))
}

func TestLoadWeatherMissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "asos.csv", weatherCSV)
	_, err := LoadWeather(config.WeatherData{
		Path:            path,
		TimestampColumn: "tm",
		Columns:         map[types.Field]string{types.WindSpeed: "ws"},
	})
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestLoadWeatherNoPath(t *testing.T) {
	table, err := LoadWeather(config.WeatherData{})
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	var nilTable *WeatherTable
	assert.Nil(t, nilTable.Day(time.Now()))
}
