package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/matheus3301/msgview/internal/app"
	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/config"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/lock"
	"github.com/matheus3301/msgview/internal/profile"
	intsync "github.com/matheus3301/msgview/internal/sync"
	"github.com/matheus3301/msgview/internal/tui"
)

func main() {
	var profileFlag, configFlag string

	cmd := &cobra.Command{
		Use:           "msgview",
		Short:         "Terminal client for an iMessage gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(profileFlag, configFlag)
		},
	}
	cmd.Flags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	cmd.Flags().StringVar(&configFlag, "config", profile.ConfigPath(), "config file")

	if err := cmd.Execute(); err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "error: %v\nanother msgview is already running on this profile; use --profile to open a different one\n", held)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(profileFlag, configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	name := profile.Resolve(profileFlag, cfg)
	if err := profile.ValidateName(name); err != nil {
		return err
	}

	var (
		engine *intsync.Engine
		b      *bus.Bus
		router *feed.Router
	)
	fxApp := app.New(app.Params{Profile: name, Config: cfg}, fx.Populate(&engine, &b, &router))
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	ui := tui.NewApp(tui.Deps{
		Engine:  engine,
		Bus:     b,
		Router:  router,
		Profile: name,
		Gateway: cfg.Server.BaseURL(),
	})
	runErr := ui.Run()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
