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
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ntpmonitor/ntpmonitor/monitor/config"
)

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect a server/fudge config file",
}

func readConfigFile(path string) (*config.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()
	return config.Parse(f)
}

var configValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Parse a config file and report success or the parse error",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		f, err := readConfigFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("ok: %d server entries\n", len(f.Servers()))
	},
}

func priorityString(p config.ServerPriority) string {
	switch p {
	case config.PriorityPrefer:
		return "prefer"
	case config.PriorityNoSelect:
		return "noselect"
	default:
		return ""
	}
}

func driverString(d *config.RefclockDriver) string {
	if d == nil {
		return ""
	}
	switch d.Kind {
	case config.RefclockNMEA:
		return "nmea:" + strconv.Itoa(d.Unit)
	case config.RefclockSHM:
		return "shm:" + strconv.Itoa(d.Unit)
	default:
		return ""
	}
}

var configShowCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Parse a config file and print its server entries as a table",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		f, err := readConfigFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"host", "priority", "mode", "driver", "fudge"})
		for _, sc := range f.Servers() {
			table.Append([]string{
				sc.Host,
				priorityString(sc.Priority),
				strconv.Itoa(sc.Mode),
				driverString(sc.Driver),
				fmt.Sprintf("%v", sc.Fudge),
			})
		}
		table.Render()
	},
}
