package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/hireflow/internal/logging"
)

var (
	flagServer    string
	flagTimeout   time.Duration
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking HIREFLOW_SERVER first.
func defaultServer() string {
	if s := os.Getenv("HIREFLOW_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the hireflow CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hireflow",
		Short: "hireflow - assessment tracking and interview invitations",
		Long:  "hireflow registers completed assessments and inspects the interview invitations the server sends.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(logging.Options{Level: flagLogLevel, Format: flagLogFormat})
			client = NewClient(flagServer, flagTimeout, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "hireflow server URL (or HIREFLOW_SERVER env)")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "HTTP request timeout")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newJobCmd(),
		newSubmitCmd(),
		newDispatchCmd(),
	)

	return root
}
