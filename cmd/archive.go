package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/twobottle/fedcore/fed/store"
)

// --- fedcore sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived sessions, oldest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := store.Open(dbPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer st.Close()
		if err := writeSessions(cmd.OutOrStdout(), st); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// --- fedcore records ---

var recordsCmd = &cobra.Command{
	Use:   "records SESSION_ID",
	Short: "Print the archived records of a session as CSV",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := store.Open(dbPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer st.Close()
		if err := writeRecords(cmd.OutOrStdout(), st, args[0]); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

type sessionEntry struct {
	ID          string `yaml:"id"`
	DeviceID    int    `yaml:"device_id"`
	Mode        int    `yaml:"mode"`
	SessionType string `yaml:"session_type"`
	StartedAt   string `yaml:"started_at"`
	LogPath     string `yaml:"log_path,omitempty"`
}

func writeSessions(w io.Writer, st *store.Store) error {
	sessions, err := st.Sessions()
	if err != nil {
		return err
	}
	entries := make([]sessionEntry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, sessionEntry{
			ID:          s.ID,
			DeviceID:    s.DeviceID,
			Mode:        s.Mode,
			SessionType: s.SessionType,
			StartedAt:   s.StartedAt.Format(time.RFC3339Nano),
			LogPath:     s.LogPath,
		})
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// writeRecords prints a session's header and records in the same layout as
// its CSV log.
func writeRecords(w io.Writer, st *store.Store, sessionID string) error {
	rows, err := st.Records(sessionID)
	if err != nil {
		return err
	}
	sessions, err := st.Sessions()
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	for _, s := range sessions {
		if s.ID == sessionID {
			if err := cw.Write(s.Columns); err != nil {
				return err
			}
			break
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(recordsCmd)
}
