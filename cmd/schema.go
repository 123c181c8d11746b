package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twobottle/fedcore/fed/logrec"
)

var (
	schemaSessionType string // Session type selecting the layout
	schemaBandit      bool   // Force the probabilistic layout
)

// schemaCmd prints the CSV header of a record layout
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the CSV column header for a session type",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeSchema(cmd.OutOrStdout(), schemaSessionType, schemaBandit, withEnv)
	},
}

func writeSchema(w io.Writer, sessionType string, bandit, env bool) error {
	s := logrec.SchemaFor(sessionType, env)
	s.Bandit = s.Bandit || bandit
	_, err := fmt.Fprintln(w, strings.Join(s.Columns(), ","))
	return err
}

func init() {
	schemaCmd.Flags().StringVar(&schemaSessionType, "session-type", "FR1", "Session type (Bandit, Bandit80 and Bandit100 select the probabilistic layout)")
	schemaCmd.Flags().BoolVar(&schemaBandit, "bandit", false, "Use the probabilistic layout regardless of session type")
	schemaCmd.Flags().BoolVar(&withEnv, "env", false, "Include the temperature/humidity columns")
}
