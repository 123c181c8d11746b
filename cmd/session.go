package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"github.com/twobottle/fedcore/fed"
	"github.com/twobottle/fedcore/fed/logfile"
	"github.com/twobottle/fedcore/fed/logrec"
	"github.com/twobottle/fedcore/fed/store"
	"github.com/twobottle/fedcore/fed/telemetry"
)

// backend holds the resources shared by every boot of a command: the
// database and the meter provider.
type backend struct {
	store    *store.Store
	meter    metric.Meter
	shutdown telemetry.Shutdown
}

func openBackend(ctx context.Context) (*backend, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	shutdown, err := telemetry.Init(ctx,
		envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		envStr("OTEL_SERVICE_NAME", "fedcore"),
		logrec.Version,
		envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &backend{store: st, meter: telemetry.Meter(), shutdown: shutdown}, nil
}

func (b *backend) Close(ctx context.Context) error {
	return errors.Join(b.shutdown(ctx), b.store.Close())
}

// booter starts a new session on every boot: it reads the persisted
// configuration, picks the profile for the persisted mode, opens a fresh log
// file and registers the session in the archive.
type booter struct {
	backend *backend
	base    fed.Profile
	dir     string

	file     *logfile.Sink
	sessions []store.Session
}

func newBooter(b *backend, base fed.Profile, dir string) *booter {
	return &booter{backend: b, base: base, dir: dir}
}

// Boot implements rig.BootFunc.
func (b *booter) Boot(hw fed.Hardware) (*fed.Device, error) {
	if err := b.closeFile(); err != nil {
		logrus.Warnf("closing previous log: %v", err)
	}

	cfg, err := hw.Config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading persisted configuration: %w", err)
	}
	cfg = fed.ClampPersisted(cfg, b.base.Modes())
	profile, err := b.base.ForMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	schema := logrec.SchemaFor(profile.SessionType, hw.Env != nil)
	started := hw.Clock.Now()
	sess := store.Session{
		ID:          uuid.NewString(),
		DeviceID:    cfg.DeviceID,
		Mode:        cfg.Mode,
		SessionType: profile.SessionType,
		Columns:     schema.Columns(),
		StartedAt:   started,
	}

	inst, err := telemetry.NewInstruments(b.backend.meter, cfg.DeviceID, profile.SessionType)
	if err != nil {
		return nil, err
	}

	name := logfile.FileName(cfg.DeviceID, int(started.Month()), started.Day(), started.Year(), sess.ID)
	file, err := logfile.Create(b.dir, name, sess.Columns)
	if err != nil {
		return nil, err
	}
	sess.LogPath = file.Path()

	// The session row is registered last so a failed boot leaves neither a
	// log file nor an empty session behind.
	dev, err := fed.NewDevice(hw, profile, cfg, fed.MultiSink{file, b.backend.store.Sink(sess.ID)}, fed.WithObserver(inst))
	if err == nil {
		err = b.backend.store.BeginSession(sess)
	}
	if err != nil {
		discard(file)
		return nil, err
	}
	b.file = file
	b.sessions = append(b.sessions, sess)
	logrus.WithFields(logrus.Fields{
		"session": sess.ID,
		"device":  cfg.DeviceID,
		"log":     sess.LogPath,
	}).Info("session registered")
	return dev, nil
}

// Sessions lists the sessions started so far.
func (b *booter) Sessions() []store.Session { return b.sessions }

// Close closes the current log file.
func (b *booter) Close() error { return b.closeFile() }

func (b *booter) closeFile() error {
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}

func discard(file *logfile.Sink) {
	_ = file.Close()
	if err := os.Remove(file.Path()); err != nil {
		logrus.Warnf("removing %s: %v", file.Path(), err)
	}
}

// loadProfile reads path over the defaults, or returns the defaults when
// path is empty.
func loadProfile(path string) (fed.Profile, error) {
	if path == "" {
		return fed.DefaultProfile(), nil
	}
	return fed.LoadProfile(path)
}

// shutdownTimeout bounds the telemetry flush at exit.
const shutdownTimeout = 5 * time.Second
