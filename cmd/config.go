package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/twobottle/fedcore/fed"
	"github.com/twobottle/fedcore/fed/store"
)

// configCmd groups the persisted configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or write the persisted device configuration",
}

// --- fedcore config show ---

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted configuration as YAML",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := store.Open(dbPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer st.Close()
		if err := showConfig(cmd.OutOrStdout(), st); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// --- fedcore config set ---

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set one persisted key (mode, device_id, timed_start, timed_end)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := strconv.Atoi(args[1])
		if err != nil {
			logrus.Fatalf("value must be an integer, got %q", args[1])
		}
		profile, err := loadProfile(profilePath)
		if err != nil {
			logrus.Fatalf("unable to read profile: %v", err)
		}
		st, err := store.Open(dbPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer st.Close()
		if err := setConfig(st, args[0], value, profile.Modes()); err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := showConfig(cmd.OutOrStdout(), st); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func showConfig(w io.Writer, st *store.Store) error {
	p, err := st.Load()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// setConfig writes one key, then clamps the whole configuration the way the
// device does at startup.
func setConfig(st *store.Store, key string, value, modeCount int) error {
	if err := st.SetKey(key, value); err != nil {
		return err
	}
	p, err := st.Load()
	if err != nil {
		return err
	}
	clamped := fed.ClampPersisted(p, modeCount)
	if clamped == p {
		return nil
	}
	logrus.Warnf("configuration clamped from %+v to %+v", p, clamped)
	return st.Save(clamped)
}

func init() {
	configSetCmd.Flags().StringVar(&profilePath, "profile", "", "Session profile YAML; its menu size bounds the mode")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
