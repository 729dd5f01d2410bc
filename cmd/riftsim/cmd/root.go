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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is riftsim's entry point, exported so it can be extended without
// touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "riftsim",
	Short: "RIFT adjacency and ZTP level-determination simulator",
}

var rootMaxLevelFlag string

func init() {
	RootCmd.PersistentFlags().StringVar(&rootMaxLevelFlag, "max-level", "info", "log level: trace, debug, info, warn, error")
}

// ConfigureVerbosity sets logrus's level from --max-level. Must be called
// by any subcommand before doing real work.
func ConfigureVerbosity() {
	lvl, err := log.ParseLevel(rootMaxLevelFlag)
	if err != nil {
		log.Fatalf("invalid --max-level %q: %v", rootMaxLevelFlag, err)
	}
	log.SetLevel(lvl)
}

// Execute is the main entry point for the CLI.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
