// Package telemetry exports swarm snapshots to InfluxDB, or to a gzip
// line-protocol backup file when InfluxDB cannot be reached.
package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/pkg/core"
)

// Measurement names.
const (
	MeasurementAgent = "agent_state"
	MeasurementSwarm = "swarm_state"
)

// BackupFileName is the backup file written inside the backup directory.
const BackupFileName = "telemetry_backup.lp.gz"

// ErrDisabled is returned by Connect when telemetry is switched off.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        config.InfluxConfig
	backupFile *os.File
}

// NewManager creates a new telemetry manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
		cfg:     cfg,
	}
}

// BackupPath returns the path of the backup file.
func (m *Manager) BackupPath() string {
	return filepath.Join(m.cfg.BackupDir, BackupFileName)
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer, writes go to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath()).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			if err := os.MkdirAll(m.cfg.BackupDir, 0755); err != nil {
				return fmt.Errorf("error creating backup directory: %w", err)
			}
			file, err := os.OpenFile(m.BackupPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Str("url", m.cfg.URL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 30 day retention
	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 30,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		if err := m.BackupWriter.Close(); err != nil {
			return fmt.Errorf("error closing backup writer: %w", err)
		}
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		err := m.backupFile.Close()
		m.backupFile = nil
		return err
	}
	return nil
}

// SnapshotPoints converts a snapshot into one point per agent plus a
// swarm-wide summary point, all stamped with the snapshot time.
func SnapshotPoints(s *core.Snapshot) []*influxdb2_write.Point {
	at := s.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	points := make([]*influxdb2_write.Point, 0, len(s.Agents)+1)
	for _, a := range s.Agents {
		p := influxdb2_write.NewPointWithMeasurement(MeasurementAgent).
			AddTag("agent", strconv.Itoa(a.ID)).
			AddTag("mode", a.Mode.String()).
			AddField("x", a.Position[0]).
			AddField("y", a.Position[1]).
			AddField("z", a.Position[2]).
			AddField("vx", a.Velocity[0]).
			AddField("vy", a.Velocity[1]).
			AddField("vz", a.Velocity[2]).
			AddField("yaw", a.Yaw).
			AddField("battery", a.Energy).
			AddField("healthy", a.Healthy).
			SetTime(at)
		if a.Geo != nil {
			p.AddField("lat", a.Geo.Lat).
				AddField("lon", a.Geo.Lon).
				AddField("alt", a.Geo.Alt)
		}
		points = append(points, p)
	}

	points = append(points, influxdb2_write.NewPointWithMeasurement(MeasurementSwarm).
		AddField("tick", int64(s.Tick)).
		AddField("sim_time", s.SimTime).
		AddField("agents", len(s.Agents)).
		AddField("healthy", s.HealthyCount()).
		SetTime(at))

	return points
}
