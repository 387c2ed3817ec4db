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
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/buswire/buswire/docindex"
)

type docsCmd struct {
	dir        string
	listen     string
	configPath string
}

func (*docsCmd) Name() string {
	return "docs"
}

func (*docsCmd) Description() string {
	return "Serve a generated documentation tree over HTTP.\nThe sidebar index for the library is generated on the fly at /sidebar-items.js."
}

func (c *docsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "", "documentation directory to serve")
	f.StringVar(&c.listen, "listen", "", "host:port to listen on")
	f.StringVar(&c.configPath, "config", "", "path to a buswire config file")
}

func (c *docsCmd) Execute(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errors.New("unsupported arguments")
	}
	path, explicit := c.configPath, c.configPath != ""
	if !explicit {
		path = defaultConfigPath
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}
	if c.dir != "" {
		cfg.Docs.Dir = c.dir
	}
	if c.listen != "" {
		cfg.Docs.Listen = c.listen
	}
	if _, err := os.Stat(cfg.Docs.Dir); err != nil {
		return err
	}

	r := mux.NewRouter()
	r.HandleFunc("/sidebar-items.js", sidebarHandler)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.Docs.Dir)))

	ln, err := net.Listen("tcp", cfg.Docs.Listen)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "serving %s on http://%s\n", cfg.Docs.Dir, ln.Addr())

	srv := &http.Server{Handler: logRequests(r)}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// sidebarHandler serves the library's own sidebar index, so a freshly
// generated documentation tree works without a checked-in copy.
func sidebarHandler(w http.ResponseWriter, req *http.Request) {
	raw, err := docindex.Catalog().Render()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write(raw)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		log.Printf("docs: %s %s (%s)", req.Method, req.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
