package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Sensor kinds accepted by SENSOR_KIND.
const (
	SensorNone       = "none"
	SensorGrovePiDHT = "grovepi-dht"
	SensorBME280     = "bme280"
	SensorBLE        = "ble"
)

// Display kinds accepted by DISPLAY_KIND.
const (
	DisplayConsole  = "console"
	DisplayGroveLCD = "grove-lcd"
)

// Disabled is the value that turns off HTTP_ADDR and SQLITE_PATH.
const Disabled = "off"

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	DeviceID         string
	InitialIndicator bool

	UplinkInterval  time.Duration
	DownlinkBackoff time.Duration

	BaselineTemperature float64
	BaselineHumidity    float64
	BaselineWindSpeed   float64
	SyntheticSpread     float64

	MQTTBroker         string
	MQTTPort           int
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTUplinkTopic    string
	MQTTDownlinkTopic  string
	MQTTReceiveTimeout time.Duration
	MQTTPublishTimeout time.Duration
	MQTTConnectTimeout time.Duration

	PublishBreakerFailures int
	PublishBreakerOpen     time.Duration

	SensorKind     string
	I2CBus         string
	GrovePiAddress uint16
	DHTPin         int
	DHTModel       string
	BME280Address  uint16
	BLEAdapter     string
	BLEMaxAge      time.Duration
	BLEDeviceID    uint32

	DisplayKind    string
	LCDTextAddress uint16
	LCDRGBAddress  uint16

	HTTPAddr string

	SQLitePath       string
	JournalRetention int
}

// HTTPEnabled reports whether the status API should be served.
func (c Config) HTTPEnabled() bool { return c.HTTPAddr != Disabled }

// JournalEnabled reports whether the SQLite journal should be opened.
func (c Config) JournalEnabled() bool { return c.SQLitePath != Disabled }

// fileConfig mirrors the YAML file named by CONFIG_FILE. Keys use the same
// names as the environment variables, lower-cased.
type fileConfig map[string]string

// source resolves a key against the environment first, then the YAML file.
type source struct {
	file fileConfig
}

func (s source) get(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[strings.ToLower(key)])
}

func (s source) str(key, def string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return def
}

func (s source) duration(key, def string) (time.Duration, error) {
	raw := s.str(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func (s source) integer(key, def string) (int, error) {
	raw := s.str(key, def)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func (s source) float(key, def string) (float64, error) {
	raw := s.str(key, def)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}

func (s source) address(key, def string) (uint16, error) {
	raw := s.str(key, def)
	a, err := strconv.ParseUint(raw, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return uint16(a), nil
}

func LoadFromEnv() (Config, error) {
	if err := loadDotenv(); err != nil {
		return Config{}, err
	}
	file, err := loadFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return Config{}, err
	}
	src := source{file: file}

	appEnv := src.str("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(src.str("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   appEnv,
		LogLevel: level,
		DeviceID: src.str("DEVICE_ID", "grovepi-bridge"),
	}

	switch indicator := strings.ToLower(src.str("INITIAL_INDICATOR", "green")); indicator {
	case "green":
		cfg.InitialIndicator = true
	case "red":
		cfg.InitialIndicator = false
	default:
		return Config{}, fmt.Errorf("invalid INITIAL_INDICATOR %q (allowed: green, red)", indicator)
	}

	if cfg.UplinkInterval, err = src.duration("UPLINK_INTERVAL", "1s"); err != nil {
		return Config{}, err
	}
	if cfg.DownlinkBackoff, err = src.duration("DOWNLINK_BACKOFF", "1s"); err != nil {
		return Config{}, err
	}

	if cfg.BaselineTemperature, err = src.float("BASELINE_TEMPERATURE", "90"); err != nil {
		return Config{}, err
	}
	if cfg.BaselineHumidity, err = src.float("BASELINE_HUMIDITY", "70"); err != nil {
		return Config{}, err
	}
	if cfg.BaselineWindSpeed, err = src.float("BASELINE_WIND_SPEED", "60"); err != nil {
		return Config{}, err
	}
	if cfg.SyntheticSpread, err = src.float("SYNTHETIC_SPREAD", "2.0"); err != nil {
		return Config{}, err
	}
	if cfg.SyntheticSpread < 0 {
		return Config{}, fmt.Errorf("SYNTHETIC_SPREAD must not be negative, got %v", cfg.SyntheticSpread)
	}

	cfg.MQTTBroker = src.str("MQTT_BROKER", "localhost")
	if cfg.MQTTPort, err = src.integer("MQTT_PORT", "1883"); err != nil {
		return Config{}, err
	}
	cfg.MQTTClientID = src.str("MQTT_CLIENT_ID", cfg.DeviceID)
	cfg.MQTTUsername = src.str("MQTT_USERNAME", "")
	cfg.MQTTPassword = src.str("MQTT_PASSWORD", "")
	cfg.MQTTUplinkTopic = src.str("MQTT_UPLINK_TOPIC", "devices/"+cfg.DeviceID+"/messages/events/")
	cfg.MQTTDownlinkTopic = src.str("MQTT_DOWNLINK_TOPIC", "devices/"+cfg.DeviceID+"/messages/devicebound/#")
	if cfg.MQTTReceiveTimeout, err = src.duration("MQTT_RECEIVE_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPublishTimeout, err = src.duration("MQTT_PUBLISH_TIMEOUT", "5s"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTConnectTimeout, err = src.duration("MQTT_CONNECT_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}

	if cfg.PublishBreakerFailures, err = src.integer("PUBLISH_BREAKER_FAILURES", "5"); err != nil {
		return Config{}, err
	}
	if cfg.PublishBreakerFailures < 1 {
		return Config{}, fmt.Errorf("PUBLISH_BREAKER_FAILURES must be at least 1, got %d", cfg.PublishBreakerFailures)
	}
	if cfg.PublishBreakerOpen, err = src.duration("PUBLISH_BREAKER_OPEN", "30s"); err != nil {
		return Config{}, err
	}

	cfg.SensorKind = strings.ToLower(src.str("SENSOR_KIND", SensorNone))
	switch cfg.SensorKind {
	case SensorNone, SensorGrovePiDHT, SensorBME280, SensorBLE:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_KIND %q (allowed: none, grovepi-dht, bme280, ble)", cfg.SensorKind)
	}
	cfg.I2CBus = src.str("I2C_BUS", "")
	if cfg.GrovePiAddress, err = src.address("GROVEPI_ADDRESS", "0x04"); err != nil {
		return Config{}, err
	}
	if cfg.DHTPin, err = src.integer("DHT_PIN", "4"); err != nil {
		return Config{}, err
	}
	cfg.DHTModel = strings.ToLower(src.str("DHT_MODEL", "dht11"))
	switch cfg.DHTModel {
	case "dht11", "dht22":
	default:
		return Config{}, fmt.Errorf("invalid DHT_MODEL %q (allowed: dht11, dht22)", cfg.DHTModel)
	}
	if cfg.BME280Address, err = src.address("BME280_ADDRESS", "0x76"); err != nil {
		return Config{}, err
	}
	cfg.BLEAdapter = src.str("BLE_ADAPTER", "hci0")
	if cfg.BLEMaxAge, err = src.duration("BLE_MAX_AGE", "30s"); err != nil {
		return Config{}, err
	}
	bleDeviceID := src.str("BLE_DEVICE_ID", "0")
	id, err := strconv.ParseUint(bleDeviceID, 0, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BLE_DEVICE_ID %q: %w", bleDeviceID, err)
	}
	cfg.BLEDeviceID = uint32(id)

	cfg.DisplayKind = strings.ToLower(src.str("DISPLAY_KIND", DisplayConsole))
	switch cfg.DisplayKind {
	case DisplayConsole, DisplayGroveLCD:
	default:
		return Config{}, fmt.Errorf("invalid DISPLAY_KIND %q (allowed: console, grove-lcd)", cfg.DisplayKind)
	}
	if cfg.LCDTextAddress, err = src.address("LCD_TEXT_ADDRESS", "0x3e"); err != nil {
		return Config{}, err
	}
	if cfg.LCDRGBAddress, err = src.address("LCD_RGB_ADDRESS", "0x62"); err != nil {
		return Config{}, err
	}

	cfg.HTTPAddr = src.str("HTTP_ADDR", ":8080")

	cfg.SQLitePath = src.str("SQLITE_PATH", "data/bridge.db")
	if cfg.JournalRetention, err = src.integer("JOURNAL_RETENTION", "10000"); err != nil {
		return Config{}, err
	}
	if cfg.JournalRetention < 1 {
		return Config{}, fmt.Errorf("JOURNAL_RETENTION must be at least 1, got %d", cfg.JournalRetention)
	}

	return cfg, nil
}

// loadDotenv reads ENV_FILE (or ./.env when present). Variables already set
// in the process environment win.
func loadDotenv() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func loadFile(path string) (fileConfig, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CONFIG_FILE %q: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse CONFIG_FILE %q: %w", path, err)
	}
	out := make(fileConfig, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("parse CONFIG_FILE %q: key %q must be a scalar", path, k)
		case nil:
			continue
		}
		out[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
