package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twobottle/fedcore/fed"
	"github.com/twobottle/fedcore/fed/rig"
	"github.com/twobottle/fedcore/fed/store"
)

var (
	profilePath string  // Session profile YAML
	scriptPath  string  // Stimulus script YAML
	seed        int64   // Seed for schedule randomization
	pollMs      int64   // Main loop poll interval in ms
	withEnv     bool    // Fit a simulated temperature/humidity sensor
	envTempC    float64 // Simulated temperature
	envHumidity float64 // Simulated relative humidity
)

// runCmd replays a stimulus script through the virtual rig
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a stimulus script through the virtual feeding device",
	Run: func(cmd *cobra.Command, args []string) {
		if scriptPath == "" {
			logrus.Fatalf("--script is required")
		}
		profile, err := loadProfile(profilePath)
		if err != nil {
			logrus.Fatalf("unable to read profile: %v", err)
		}
		if cmd.Flags().Changed("seed") {
			profile.Seed = seed
		}
		poll := profile.PollIntervalMs
		if cmd.Flags().Changed("poll") {
			poll = pollMs
		}
		script, err := rig.LoadScript(scriptPath)
		if err != nil {
			logrus.Fatalf("unable to read script: %v", err)
		}

		ctx := cmd.Context()
		be, err := openBackend(ctx)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		r := newRig(be, profile)
		b := newBooter(be, profile, dataDir)
		logrus.Infof("Replaying %s for %d ms at %d ms polls", scriptPath, script.DurationMs, poll)
		rep, err := r.Run(ctx, script, poll, b.Boot)
		if cerr := b.Close(); cerr != nil {
			logrus.Warnf("closing log: %v", cerr)
		}
		if err != nil {
			logrus.Errorf("Replay stopped: %v", err)
		}
		if rep != nil {
			if werr := writeSummary(os.Stdout, rep, r, b.Sessions()); werr != nil {
				logrus.Errorf("writing summary: %v", werr)
			}
		}
		closeBackend(be)
		if err != nil {
			os.Exit(1)
		}
		logrus.Info("Replay complete.")
	},
}

func newRig(be *backend, profile fed.Profile) *rig.Rig {
	opts := []rig.Option{
		rig.WithConfig(be.store),
		rig.WithLickChannels(profile.LeftLickChannel, profile.RightLickChannel),
	}
	if withEnv {
		opts = append(opts, rig.WithEnv(&rig.Env{TempC: envTempC, Humidity: envHumidity}))
	}
	return rig.New(opts...)
}

func closeBackend(be *backend) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := be.Close(ctx); err != nil {
		logrus.Warnf("shutting down: %v", err)
	}
}

// summary is the JSON report printed after a replay.
type summary struct {
	Boots        int              `json:"boots"`
	Ticks        int64            `json:"ticks"`
	Deliveries   int              `json:"deliveries"`
	Reboots      int              `json:"reboots"`
	Faulted      bool             `json:"faulted"`
	Mode         string           `json:"mode,omitempty"`
	PokeCount    [2]int           `json:"poke_count"`
	LickCount    [2]int           `json:"lick_count"`
	DeliverCount [2]int           `json:"deliver_count"`
	Records      int              `json:"records"`
	Sessions     []sessionSummary `json:"sessions"`
}

type sessionSummary struct {
	ID          string `json:"id"`
	DeviceID    int    `json:"device_id"`
	Mode        int    `json:"mode"`
	SessionType string `json:"session_type"`
	LogPath     string `json:"log_path"`
}

func writeSummary(w io.Writer, rep *rig.Report, r *rig.Rig, sessions []store.Session) error {
	s := summary{
		Boots:      rep.Boots,
		Ticks:      rep.Ticks,
		Deliveries: len(r.Deliveries),
		Reboots:    r.Reboots,
	}
	if rep.Device != nil {
		snap := rep.Device.Snapshot()
		s.Faulted = snap.Faulted
		s.Mode = snap.Mode.String()
		s.PokeCount = snap.Counters.PokeCount
		s.LickCount = snap.Counters.LickCount
		s.DeliverCount = snap.Counters.DeliverCount
		s.Records = snap.Records
	}
	for _, sess := range sessions {
		s.Sessions = append(s.Sessions, sessionSummary{
			ID:          sess.ID,
			DeviceID:    sess.DeviceID,
			Mode:        sess.Mode,
			SessionType: sess.SessionType,
			LogPath:     sess.LogPath,
		})
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "=== Session Summary ===\n%s\n", data)
	return err
}

func init() {
	runCmd.Flags().StringVar(&profilePath, "profile", "", "Session profile YAML (defaults apply when empty)")
	runCmd.Flags().StringVar(&scriptPath, "script", "", "Stimulus script YAML")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for schedule randomization (overrides the profile)")
	runCmd.Flags().Int64Var(&pollMs, "poll", 1, "Main loop poll interval in ms (overrides the profile)")
	addEnvFlags(runCmd)
}

func addEnvFlags(c *cobra.Command) {
	c.Flags().BoolVar(&withEnv, "env", false, "Fit a simulated temperature/humidity sensor")
	c.Flags().Float64Var(&envTempC, "temp", 22.5, "Simulated temperature in C (with --env)")
	c.Flags().Float64Var(&envHumidity, "humidity", 45, "Simulated relative humidity in % (with --env)")
}
