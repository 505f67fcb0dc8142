// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/gorse-io/restaurant-recommender/cmd/version"
	"github.com/gorse-io/restaurant-recommender/config"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// command carries the configuration loaded by the root command to subcommands.
type command struct {
	conf *config.Config
}

func newRootCommand() *cobra.Command {
	c := new(command)
	rootCommand := &cobra.Command{
		Use:           "restaurant-recommender",
		Short:         "Restaurant recommender based on matrix factorization.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// setup logger
			debug, _ := cmd.Flags().GetBool("debug")
			log.SetLogger(cmd.Flags(), debug)
			// load config
			configPath, _ := cmd.Flags().GetString("config")
			log.Logger().Debug("load config", zap.String("config", configPath))
			conf, err := config.LoadConfig(configPath)
			if err != nil {
				return errors.Annotate(err, "failed to load config")
			}
			c.conf = conf
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show version
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				_, err := fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
				return err
			}
			return cmd.Help()
		},
	}
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.Flags().BoolP("version", "v", false, "restaurant recommender version")
	rootCommand.AddCommand(
		c.newTrainCommand(),
		c.newRecommendCommand(),
		c.newCVCommand(),
		c.newTuneCommand(),
		c.newImportCommand(),
		c.newExportCommand(),
		newVersionCommand(),
	)
	return rootCommand
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
			return err
		},
	}
}

func main() {
	defer log.Sync()
	if err := newRootCommand().Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
