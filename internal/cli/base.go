// Copyright 2024 The Buswire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"errors"
	"time"

	"github.com/buswire/buswire/bus"
	flag "github.com/spf13/pflag"
)

const defaultConfigPath = ".buswire.yml"

// commandBase holds the bus selection flags shared by the commands
// that open a connection.
type commandBase struct {
	system     bool
	session    bool
	addr       string
	configPath string
	timeout    time.Duration
}

func (c *commandBase) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.system, "system", false, "connect to the system bus")
	f.BoolVar(&c.session, "session", false, "connect to the session bus (the default)")
	f.StringVar(&c.addr, "address", "", "connect to the given bus address string")
	f.StringVar(&c.configPath, "config", "", "path to a buswire config file")
	f.DurationVar(&c.timeout, "timeout", 0, "per-call timeout, 0 to use the config value")
}

// options merges flags over the config file and resolves which bus to
// dial.
func (c *commandBase) options() (config, error) {
	path, explicit := c.configPath, c.configPath != ""
	if !explicit {
		path = defaultConfigPath
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return cfg, err
	}
	set := 0
	for _, b := range []bool{c.system, c.session, c.addr != ""} {
		if b {
			set++
		}
	}
	if set > 1 {
		return cfg, errors.New("--system, --session and --address are mutually exclusive")
	}
	if c.addr != "" {
		cfg.Address = c.addr
	}
	if c.timeout > 0 {
		cfg.Timeout = duration(c.timeout)
	}
	return cfg, nil
}

// connect dials the selected bus.
func (c *commandBase) connect(cfg config) (*bus.Conn, error) {
	switch {
	case c.system:
		return bus.ConnectSystem()
	case c.session:
		return bus.ConnectSession()
	case cfg.Address != "":
		return bus.Connect(cfg.Address)
	}
	return bus.ConnectSession()
}
