package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS pv_site_readings (
    time timestamp WITHOUT TIME ZONE NOT NULL,
    site_id text NOT NULL,
    station_id text NULL,
    active_power float8 NULL,
    global_horizontal_radiation float8 NULL,
    weather_temperature_celsius float8 NULL,
    weather_relative_humidity float8 NULL,
    wind_speed float8 NULL,
    run_id text NULL,
    PRIMARY KEY (site_id, time)
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('pv_site_readings', 'time', if_not_exists => true);`

const createSiteIndexSQL = `CREATE INDEX IF NOT EXISTS pv_site_readings_site_time_idx ON pv_site_readings (site_id, time DESC);`
