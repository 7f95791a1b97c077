package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/config"
	"github.com/matheus3301/msgview/internal/logging"
	"github.com/matheus3301/msgview/internal/profile"
)

// globals holds the persistent flags and the values resolved from them.
type globals struct {
	profile string
	config  string
	json    bool
	timeout time.Duration

	cfg    *config.Config
	name   string
	logger *zap.Logger
	client *api.Client
}

func main() {
	g := &globals{}
	root := newRootCmd(g)
	err := root.Execute()
	if g.logger != nil {
		_ = g.logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "msgviewctl",
		Short:         "Query an iMessage gateway from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.profile, "profile", "", "profile name (overrides config default)")
	pf.StringVar(&g.config, "config", profile.ConfigPath(), "config file")
	pf.BoolVar(&g.json, "json", false, "output in JSON format")
	pf.DurationVar(&g.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newChatsCmd(g),
		newMessagesCmd(g),
		newSendCmd(g),
		newSearchCmd(g),
		newContactCmd(g),
		newHealthCmd(g),
		newTailCmd(g),
	)
	return root
}

func (g *globals) setup() error {
	cfg, err := config.LoadOrDefault(g.config)
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.name = profile.Resolve(g.profile, cfg)
	if err := profile.ValidateName(g.name); err != nil {
		return err
	}
	g.logger, err = logging.New(logging.Options{
		Path:    profile.LogPath(g.name),
		Profile: g.name,
		Level:   cfg.Log.Level,
		Console: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	g.logger = g.logger.Named("ctl")
	g.client, err = api.NewClient(cfg.Server, g.logger.Named("api"))
	return err
}
