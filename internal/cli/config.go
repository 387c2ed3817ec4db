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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// duration accepts "25s" style values in the config file.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// config are the file-settable defaults. Flags override anything set
// here.
type config struct {
	// Address is a bus server address string used when neither
	// --system, --session nor --address is given.
	Address string `yaml:"address"`
	// Timeout bounds each method call.
	Timeout duration `yaml:"timeout"`
	Docs    struct {
		// Dir is the documentation tree served by `buswire docs`.
		Dir string `yaml:"dir"`
		// Listen is the host:port to serve on.
		Listen string `yaml:"listen"`
	} `yaml:"docs"`
}

func defaultConfig() config {
	var c config
	c.Timeout = duration(25 * time.Second)
	c.Docs.Dir = "."
	c.Docs.Listen = "localhost:8081"
	return c
}

// loadConfig reads path if it exists. A missing file is only an error
// when the user named the path explicitly.
func loadConfig(path string, explicit bool) (config, error) {
	c := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
