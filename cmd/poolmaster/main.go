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
	"fmt"
	"os"

	"github.com/canonical/go-flags"

	"github.com/venkatasivakesarla/resque-pool/internal/logger"
)

type options struct{}

var optionsData options

// cmdInfo holds everything needed to call parser.AddCommand.
type cmdInfo struct {
	name, shortHelp, longHelp string
	builder                   func() flags.Commander
	hidden                    bool
}

var commands []*cmdInfo

// addCommand registers a subcommand against the package-level command
// table, which Parser then attaches to a fresh parser on every call.
func addCommand(name, shortHelp, longHelp string, builder func() flags.Commander) *cmdInfo {
	info := &cmdInfo{name: name, shortHelp: shortHelp, longHelp: longHelp, builder: builder}
	commands = append(commands, info)
	return info
}

func addHiddenCommand(name, shortHelp, longHelp string, builder func() flags.Commander) *cmdInfo {
	info := addCommand(name, shortHelp, longHelp, builder)
	info.hidden = true
	return info
}

// Parser creates a fresh go-flags parser with every registered
// subcommand attached.
func Parser() *flags.Parser {
	parser := flags.NewParser(&optionsData, flags.Options(flags.PassDoubleDash))
	parser.ShortDescription = "Worker-pool supervisor for background job processing"
	parser.Usage = ""

	for _, c := range commands {
		cmd, err := parser.AddCommand(c.name, c.shortHelp, c.longHelp, c.builder())
		if err != nil {
			logger.Panicf("cannot add command %q: %v", c.name, err)
		}
		cmd.Hidden = c.hidden
	}
	return parser
}

func main() {
	logger.SetLogger(logger.New(os.Stderr, ""))

	if _, err := Parser().Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
