// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storj.io/common/fpath"
	"storj.io/private/cfgstruct"
	"storj.io/private/process"

	"github.com/cedarwud/ntn-stack-sub001/pipeline"
)

var (
	rootCmd = &cobra.Command{
		Use:   "ntn-pipeline",
		Short: "LEO constellation data integration and dynamic pool planning",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run both stages: integration and pool planning",
		RunE:  cmdRun,
	}
	stage5Cmd = &cobra.Command{
		Use:   "stage5",
		Short: "Run the integration stage alone",
		RunE:  cmdStage5,
	}
	stage6Cmd = &cobra.Command{
		Use:   "stage6",
		Short: "Run the pool planning stage (integration runs first as its input)",
		RunE:  cmdStage6,
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}

	confDir string

	runCfg   pipeline.Config
	setupCfg pipeline.Config
)

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}

	valid, _ := fpath.IsValidSetupDir(setupDir)
	if !valid {
		return fmt.Errorf("pipeline configuration already exists (%v)", setupDir)
	}

	err = os.MkdirAll(setupDir, 0700)
	if err != nil {
		return err
	}

	return process.SaveConfig(cmd, filepath.Join(setupDir, "config.yaml"))
}

func cmdRun(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	peer, err := pipeline.New(log.Named("pipeline"), runCfg)
	if err != nil {
		return err
	}
	defer func() { _ = peer.Close() }()

	if _, err := peer.Run(ctx); err != nil {
		exit(log, err)
	}
	return nil
}

func cmdStage5(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	peer, err := pipeline.New(log.Named("pipeline"), runCfg)
	if err != nil {
		return err
	}
	defer func() { _ = peer.Close() }()

	if _, err := peer.RunStage5(ctx); err != nil {
		exit(log, err)
	}
	return nil
}

func cmdStage6(cmd *cobra.Command, args []string) error {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	peer, err := pipeline.New(log.Named("pipeline"), runCfg)
	if err != nil {
		return err
	}
	defer func() { _ = peer.Close() }()

	if _, err := peer.RunStage6(ctx); err != nil {
		exit(log, err)
	}
	return nil
}

// exit terminates with the documented exit code for the error class: 2 for
// zero-tolerance failures, 3 when no feasible configuration exists, 4 for
// strict-mode validation failures, 1 otherwise.
func exit(log *zap.Logger, err error) {
	code := pipeline.ExitCode(err)
	log.Error("pipeline run failed",
		zap.String("kind", pipeline.ErrorKind(err)),
		zap.Int("exit_code", code),
		zap.Error(err))
	_ = log.Sync()
	os.Exit(code)
}

func init() {
	defaultConfDir := fpath.ApplicationDir("ntn-stack", "pipeline")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for pipeline configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stage5Cmd)
	rootCmd.AddCommand(stage6Cmd)
	rootCmd.AddCommand(setupCmd)
	process.Bind(runCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(stage5Cmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(stage6Cmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
}

func main() {
	logger, _, _ := process.NewLogger("ntn-pipeline")
	zap.ReplaceGlobals(logger)

	process.Exec(rootCmd)
}
