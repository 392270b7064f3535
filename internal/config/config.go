package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/controller"
	"github.com/auslab/swarm/internal/physics"
	"github.com/auslab/swarm/internal/swarm"
	"github.com/auslab/swarm/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "swarm.cfg.json"

// ServerConfig holds HTTP and WebSocket settings.
type ServerConfig struct {
	Addr              string        `json:"addr" mapstructure:"addr"`
	BroadcastInterval time.Duration `json:"broadcastInterval" mapstructure:"broadcastInterval"`
	WaitTimeout       time.Duration `json:"waitTimeout" mapstructure:"waitTimeout"`
	GroundHeight      float64       `json:"groundHeight" mapstructure:"groundHeight"`
}

// MemoryConfig holds in-memory preset store settings.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"` // empty disables the JSON export
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite preset store settings.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"` // empty means in-memory
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres preset store settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// StorageConfig selects and configures the formation preset backend.
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds telemetry export settings.
type InfluxConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Host      string        `json:"host" mapstructure:"host"`
	Port      string        `json:"port" mapstructure:"port"`
	Protocol  string        `json:"protocol" mapstructure:"protocol"`
	Token     string        `json:"token" mapstructure:"token"`
	Org       string        `json:"org" mapstructure:"org"`
	Bucket    string        `json:"bucket" mapstructure:"bucket"`
	Interval  time.Duration `json:"interval" mapstructure:"interval"`
	BackupDir string        `json:"backupDir" mapstructure:"backupDir"`
}

// URL returns the InfluxDB server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GeoConfig anchors local coordinates to the globe and optionally fences them.
type GeoConfig struct {
	Enabled   bool    `json:"enabled" mapstructure:"enabled"`
	OriginLon float64 `json:"originLon" mapstructure:"originLon"`
	OriginLat float64 `json:"originLat" mapstructure:"originLat"`
	OriginAlt float64 `json:"originAlt" mapstructure:"originAlt"`
	Fence     string  `json:"fence" mapstructure:"fence"` // WKT polygon in local meters
}

// GraylogConfig holds the GELF sink address.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// MonitorConfig holds status file settings.
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Environment
// variables prefixed with SWARM_ override both, e.g. SWARM_SERVER_ADDR.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("SWARM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./swarmlogs")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.broadcastInterval", "100ms")
	viper.SetDefault("server.waitTimeout", "2s")
	viper.SetDefault("server.groundHeight", 0.0)

	sw := swarm.DefaultConfig()
	viper.SetDefault("control.hz", sw.ControlHz)
	viper.SetDefault("physics.hz", 240)
	viper.SetDefault("swarm.count", sw.InitialCount)
	viper.SetDefault("swarm.spawnSpacing", sw.SpawnSpacing)
	viper.SetDefault("swarm.spawnAltitude", sw.SpawnAltitude)
	viper.SetDefault("swarm.bound", sw.Bounds.XY)
	viper.SetDefault("swarm.zMax", sw.Bounds.ZMax)
	viper.SetDefault("energy.drainPerSecond", sw.EnergyDrainPerSecond)

	ctl := controller.DefaultConfig()
	viper.SetDefault("controller.position.kp", ctl.Position.Kp)
	viper.SetDefault("controller.position.ki", ctl.Position.Ki)
	viper.SetDefault("controller.position.kd", ctl.Position.Kd)
	viper.SetDefault("controller.yaw.kp", ctl.Yaw.Kp)
	viper.SetDefault("controller.yaw.ki", ctl.Yaw.Ki)
	viper.SetDefault("controller.yaw.kd", ctl.Yaw.Kd)
	viper.SetDefault("controller.integralLimit", ctl.IntegralLimit)
	viper.SetDefault("controller.maxVelocity", ctl.MaxVelocity)
	viper.SetDefault("controller.maxYawRate", ctl.MaxYawRate)
	viper.SetDefault("controller.epsilon", ctl.Epsilon)
	viper.SetDefault("controller.yawEpsilon", ctl.YawEpsilon)
	viper.SetDefault("controller.arrivalTolerance", ctl.ArrivalTolerance)
	viper.SetDefault("controller.landedAltitude", ctl.LandedAltitude)

	kin := physics.DefaultKinematicConfig()
	viper.SetDefault("physics.responseRate", kin.ResponseRate)
	viper.SetDefault("physics.drag", kin.Drag)

	lim := command.DefaultLimits()
	viper.SetDefault("queue.capacity", 1024)
	viper.SetDefault("limits.positionXY", lim.PositionXY)
	viper.SetDefault("limits.altitudeMin", lim.AltitudeMin)
	viper.SetDefault("limits.altitudeMax", lim.AltitudeMax)
	viper.SetDefault("limits.velocityAxis", lim.VelocityAxis)
	viper.SetDefault("limits.yawRate", lim.YawRate)
	viper.SetDefault("limits.maxSpawn", lim.MaxSpawn)
	viper.SetDefault("limits.spacingMin", lim.SpacingMin)
	viper.SetDefault("limits.spacingMax", lim.SpacingMax)
	viper.SetDefault("limits.radiusMin", lim.RadiusMin)
	viper.SetDefault("limits.radiusMax", lim.RadiusMax)

	cam := physics.DefaultCameraConfig()
	viper.SetDefault("camera.eye", cam.Eye[:])
	viper.SetDefault("camera.target", cam.Target[:])
	viper.SetDefault("camera.up", cam.Up[:])
	viper.SetDefault("camera.fovY", cam.FovY)
	viper.SetDefault("camera.near", cam.Near)
	viper.SetDefault("camera.far", cam.Far)
	viper.SetDefault("camera.width", cam.Width)
	viper.SetDefault("camera.height", cam.Height)

	viper.SetDefault("geo.enabled", false)
	viper.SetDefault("geo.originLon", 0.0)
	viper.SetDefault("geo.originLat", 0.0)
	viper.SetDefault("geo.originAlt", 0.0)
	viper.SetDefault("geo.fence", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./presets")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "swarm")
	viper.SetDefault("storage.postgres.sslMode", "disable")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "swarm-metrics")
	viper.SetDefault("influx.bucket", "swarm-telemetry")
	viper.SetDefault("influx.interval", "1s")
	viper.SetDefault("influx.backupDir", "./swarmlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "swarmd")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "5s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSwarmConfig returns control loop settings.
func GetSwarmConfig() swarm.Config {
	return swarm.Config{
		ControlHz:            viper.GetInt("control.hz"),
		InitialCount:         viper.GetInt("swarm.count"),
		SpawnSpacing:         viper.GetFloat64("swarm.spawnSpacing"),
		SpawnAltitude:        viper.GetFloat64("swarm.spawnAltitude"),
		EnergyDrainPerSecond: viper.GetFloat64("energy.drainPerSecond"),
		Bounds:               getBounds(),
		Controller:           GetControllerConfig(),
	}
}

// GetControllerConfig returns flight controller gains and limits.
func GetControllerConfig() controller.Config {
	return controller.Config{
		Position: controller.Gains{
			Kp: viper.GetFloat64("controller.position.kp"),
			Ki: viper.GetFloat64("controller.position.ki"),
			Kd: viper.GetFloat64("controller.position.kd"),
		},
		Yaw: controller.Gains{
			Kp: viper.GetFloat64("controller.yaw.kp"),
			Ki: viper.GetFloat64("controller.yaw.ki"),
			Kd: viper.GetFloat64("controller.yaw.kd"),
		},
		IntegralLimit:    viper.GetFloat64("controller.integralLimit"),
		MaxVelocity:      viper.GetFloat64("controller.maxVelocity"),
		MaxYawRate:       viper.GetFloat64("controller.maxYawRate"),
		Epsilon:          viper.GetFloat64("controller.epsilon"),
		YawEpsilon:       viper.GetFloat64("controller.yawEpsilon"),
		ArrivalTolerance: viper.GetFloat64("controller.arrivalTolerance"),
		LandedAltitude:   viper.GetFloat64("controller.landedAltitude"),
	}
}

func getBounds() core.Bounds {
	return core.Bounds{
		XY:   viper.GetFloat64("swarm.bound"),
		ZMax: viper.GetFloat64("swarm.zMax"),
	}
}

// GetPhysicsConfig returns kinematic engine settings.
func GetPhysicsConfig() physics.KinematicConfig {
	return physics.KinematicConfig{
		SubSteps:     physics.SubStepsFor(viper.GetInt("physics.hz"), viper.GetInt("control.hz")),
		ResponseRate: viper.GetFloat64("physics.responseRate"),
		Drag:         viper.GetFloat64("physics.drag"),
		Bounds:       getBounds(),
	}
}

// GetQueueCapacity returns the command queue bound; 0 means unbounded.
func GetQueueCapacity() int {
	return viper.GetInt("queue.capacity")
}

// GetLimits returns command admission limits.
func GetLimits() command.Limits {
	return command.Limits{
		PositionXY:   viper.GetFloat64("limits.positionXY"),
		AltitudeMin:  viper.GetFloat64("limits.altitudeMin"),
		AltitudeMax:  viper.GetFloat64("limits.altitudeMax"),
		VelocityAxis: viper.GetFloat64("limits.velocityAxis"),
		YawRate:      viper.GetFloat64("limits.yawRate"),
		MaxSpawn:     viper.GetInt("limits.maxSpawn"),
		SpacingMin:   viper.GetFloat64("limits.spacingMin"),
		SpacingMax:   viper.GetFloat64("limits.spacingMax"),
		RadiusMin:    viper.GetFloat64("limits.radiusMin"),
		RadiusMax:    viper.GetFloat64("limits.radiusMax"),
	}
}

// GetCameraConfig returns the observer camera placement.
func GetCameraConfig() (physics.CameraConfig, error) {
	cam := physics.CameraConfig{
		FovY:   viper.GetFloat64("camera.fovY"),
		Near:   viper.GetFloat64("camera.near"),
		Far:    viper.GetFloat64("camera.far"),
		Width:  viper.GetFloat64("camera.width"),
		Height: viper.GetFloat64("camera.height"),
	}
	var err error
	if cam.Eye, err = getVec3("camera.eye"); err != nil {
		return physics.CameraConfig{}, err
	}
	if cam.Target, err = getVec3("camera.target"); err != nil {
		return physics.CameraConfig{}, err
	}
	if cam.Up, err = getVec3("camera.up"); err != nil {
		return physics.CameraConfig{}, err
	}
	return cam, nil
}

// getVec3 reads a three element numeric array.
func getVec3(key string) ([3]float64, error) {
	var out [3]float64
	var items []any
	switch v := viper.Get(key).(type) {
	case []any:
		items = v
	case []float64:
		for i := range v {
			items = append(items, v[i])
		}
	default:
		return out, fmt.Errorf("%s: expected an array of 3 numbers, got %T", key, v)
	}
	if len(items) != 3 {
		return out, fmt.Errorf("%s: expected 3 numbers, got %d", key, len(items))
	}
	for i, item := range items {
		switch n := item.(type) {
		case float64:
			out[i] = n
		case int:
			out[i] = float64(n)
		default:
			return out, fmt.Errorf("%s[%d]: not a number: %v", key, i, item)
		}
	}
	return out, nil
}

// GetServerConfig returns HTTP server settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              viper.GetString("server.addr"),
		BroadcastInterval: viper.GetDuration("server.broadcastInterval"),
		WaitTimeout:       viper.GetDuration("server.waitTimeout"),
		GroundHeight:      viper.GetFloat64("server.groundHeight"),
	}
}

// GetStorageConfig returns the preset storage configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslMode"),
		},
	}
}

// GetInfluxConfig returns telemetry export settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		Interval:  viper.GetDuration("influx.interval"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetGeoConfig returns georeferencing settings.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		Enabled:   viper.GetBool("geo.enabled"),
		OriginLon: viper.GetFloat64("geo.originLon"),
		OriginLat: viper.GetFloat64("geo.originLat"),
		OriginAlt: viper.GetFloat64("geo.originAlt"),
		Fence:     viper.GetString("geo.fence"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns status file settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}
