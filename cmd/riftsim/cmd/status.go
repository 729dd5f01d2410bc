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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/riftsim/rift/snapshot"
)

var statusSnapshotFlag string

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusSnapshotFlag, "snapshot", "", "path to a snapshot JSON file, or a snapshot-dir/logs directory to use its latest file")
	_ = statusCmd.MarkFlagRequired("snapshot")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Render the most recent snapshot as a color-coded adjacency table",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		path, err := resolveSnapshotPath(statusSnapshotFlag)
		if err != nil {
			log.Fatal(err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("reading snapshot %s: %v", path, err)
		}
		var doc snapshot.Document
		if err := json.Unmarshal(b, &doc); err != nil {
			log.Fatalf("parsing snapshot %s: %v", path, err)
		}
		printStatus(doc)
	},
}

// resolveSnapshotPath accepts either a snapshot file directly or a
// directory of them, in which case it picks the one with the largest
// UnixNano filename (the most recent).
func resolveSnapshotPath(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return p, nil
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return "", err
	}
	var best string
	var bestNS int64
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		ns, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		if ns > bestNS {
			bestNS = ns
			best = e.Name()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no snapshot files found in %s", p)
	}
	return filepath.Join(p, best), nil
}

func colorizeState(state string) string {
	switch state {
	case "ThreeWay":
		return color.GreenString(state)
	case "TwoWay":
		return color.YellowString(state)
	default:
		return color.RedString(state)
	}
}

func printStatus(doc snapshot.Document) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 120
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(width / 6)
	table.SetHeader([]string{"node", "system id", "level", "ztp state", "interface", "lie state", "neighbor"})

	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].Name < doc.Nodes[j].Name })
	for _, n := range doc.Nodes {
		level := "undefined"
		if n.EffectiveLevel != nil {
			level = fmt.Sprintf("%d", *n.EffectiveLevel)
		}
		if len(n.Interfaces) == 0 {
			table.Append([]string{n.Name, n.SystemID.String(), level, n.ZTPState, "", "", ""})
			continue
		}
		for i, iface := range n.Interfaces {
			name, id, lvl, ztpState := "", "", "", ""
			if i == 0 {
				name, id, lvl, ztpState = n.Name, n.SystemID.String(), level, n.ZTPState
			}
			neighbor := ""
			if iface.Neighbor != nil {
				neighbor = fmt.Sprintf("%s/%d", iface.Neighbor.SystemID, iface.Neighbor.LinkID)
			}
			table.Append([]string{name, id, lvl, ztpState, iface.Name, colorizeState(iface.LieState), neighbor})
		}
	}
	table.Render()
}
