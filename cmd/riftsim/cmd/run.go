/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	riftconfig "github.com/riftsim/rift/config"
	"github.com/riftsim/rift/sim"
)

var (
	runTopologyFlag     string
	runSnapshotFlag      int
	runMaxSnapshotsFlag  int
	runSnapshotDirFlag   string
	runConstantsFlag     string
	runDSCPFlag          int
)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runTopologyFlag, "topology", "", "path to the topology YAML file (required)")
	runCmd.Flags().IntVar(&runSnapshotFlag, "snapshot", 5, "snapshot emission cadence, in seconds")
	runCmd.Flags().IntVar(&runMaxSnapshotsFlag, "max-snapshots", 0, "stop after N snapshots; 0 means unbounded")
	runCmd.Flags().StringVar(&runSnapshotDirFlag, "snapshot-dir", ".", "directory snapshots are written under (as snapshot-dir/logs/*.json)")
	runCmd.Flags().StringVar(&runConstantsFlag, "constants", "", "optional path to an INI file overriding protocol constants")
	runCmd.Flags().IntVar(&runDSCPFlag, "dscp", 0, "DSCP value for outgoing LIE packets, 0-63")
	_ = runCmd.MarkFlagRequired("topology")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a topology and run its nodes' LIE/ZTP event loops",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		var constants *riftconfig.Constants
		if runConstantsFlag != "" {
			c, err := riftconfig.Load(runConstantsFlag)
			if err != nil {
				log.Fatalf("loading --constants %s: %v", runConstantsFlag, err)
			}
			constants = c
		}

		s, err := sim.Build(runTopologyFlag, sim.Options{
			SnapshotInterval: time.Duration(runSnapshotFlag) * time.Second,
			MaxSnapshots:     runMaxSnapshotsFlag,
			SnapshotDir:      runSnapshotDirFlag,
			DSCP:             runDSCPFlag,
			Constants:        constants,
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Infof("loaded topology %s with %d nodes", runTopologyFlag, len(s.Nodes()))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if supported, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			log.Warnf("sd_notify failed: %v", err)
		} else if !supported {
			log.Debug("sd_notify not supported")
		}

		if err := s.Run(ctx); err != nil {
			log.Fatal(err)
		}
	},
}
