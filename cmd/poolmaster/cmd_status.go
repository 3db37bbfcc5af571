// Copyright (c) 2024 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/canonical/go-flags"
	"golang.org/x/term"
)

var shortStatusHelp = "Show live worker status from a running pool master"
var longStatusHelp = `
The status command queries a running pool master's admin API and prints
the live worker counts per queue group.
`

type cmdStatus struct {
	HTTPAddr string `long:"http" value-name:"<addr>" description:"Admin API address to query" default:"http://localhost:8080"`
}

func init() {
	addCommand("status", shortStatusHelp, longStatusHelp, func() flags.Commander { return &cmdStatus{} })
}

type statusResponse struct {
	MasterPid int `json:"master_pid"`
	Workers   map[string][]struct {
		Pid        int    `json:"pid"`
		QueueGroup string `json:"queue_group"`
		Kind       string `json:"kind"`
		SpawnedAt  string `json:"spawned_at"`
	} `json:"workers"`
}

func (cmd *cmdStatus) Execute(args []string) error {
	resp, err := http.Get(cmd.HTTPAddr + "/status")
	if err != nil {
		return fmt.Errorf("cannot reach admin API at %s: %w", cmd.HTTPAddr, err)
	}
	defer resp.Body.Close()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("cannot decode status response: %w", err)
	}

	bold := term.IsTerminal(int(os.Stdout.Fd()))
	groups := make([]string, 0, len(status.Workers))
	for g := range status.Workers {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	heading := "Queue group"
	if bold {
		heading = "\033[1m" + heading + "\033[0m"
	}
	fmt.Printf("master pid: %d\n\n%s\n", status.MasterPid, heading)
	for _, g := range groups {
		fmt.Printf("  %s: %d worker(s)\n", g, len(status.Workers[g]))
		for _, w := range status.Workers[g] {
			fmt.Printf("    pid=%d kind=%s spawned_at=%s\n", w.Pid, w.Kind, w.SpawnedAt)
		}
	}
	return nil
}
