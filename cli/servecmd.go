// Copyright 2016 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
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
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/metal-stack/fielddhcp/api"
	"github.com/metal-stack/fielddhcp/netconf"
	"github.com/metal-stack/fielddhcp/responder"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer DHCP requests until interrupted",
	Long: `Serve binds UDP port 67 and answers DISCOVER and REQUEST broadcasts
with addresses from the configured pool. Status lines are printed to
stdout, structured logs go to stderr.

Every flag can also be set in the config file, or through an
environment variable such as FIELDDHCP_POOL_START.`,
	Run: func(cmd *cobra.Command, args []string) {
		log, err := newLogger(viper.GetBool("debug"))
		if err != nil {
			fatalf("Error creating logger: %s", err)
		}
		defer func() { _ = log.Sync() }()

		cfg, err := configFromViper()
		if err != nil {
			fatalf("Error reading configuration: %s", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx, log, cfg, serveOptionsFromViper(), os.Stdout); err != nil {
			fatalf("%s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := api.DefaultConfig()
	f := serveCmd.Flags()
	f.String("server-address", defaults.ServerAddress, "our own IPv4 address on the served segment")
	f.String("pool-start", defaults.PoolStart, "first address handed out")
	f.String("pool-end", defaults.PoolEnd, "last address handed out, in the same /24 as --pool-start")
	f.String("subnet-mask", defaults.SubnetMask, "subnet mask sent to clients")
	f.String("router", defaults.Router, "default gateway sent to clients")
	f.String("dns", defaults.DNS, "DNS server sent to clients")
	f.String("listen-addr", "", "UDP address to listen on (default \":67\")")
	f.String("interface", "", "serve only this network interface")
	f.Bool("configure-interface", false, "assign --server-address to --interface before serving, needs admin rights")
	f.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. \":2112\"")
	f.String("trace-file", "", "write every packet received and sent to this pcap file")

	if err := viper.BindPFlags(f); err != nil {
		fatalf("Error binding flags: %s", err)
	}
}

func configFromViper() (api.Config, error) {
	var cfg api.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type serveOptions struct {
	configureInterface bool
	metricsAddr        string
	traceFile          string
}

func serveOptionsFromViper() serveOptions {
	return serveOptions{
		configureInterface: viper.GetBool("configure-interface"),
		metricsAddr:        viper.GetString("metrics-addr"),
		traceFile:          viper.GetString("trace-file"),
	}
}

func serve(ctx context.Context, log *zap.SugaredLogger, cfg api.Config, opts serveOptions, out io.Writer) error {
	rOpts := []responder.Option{
		responder.WithLogger(log),
		responder.WithNotify(statusSink(out, time.Now)),
	}
	if cfg.ListenAddr != "" {
		rOpts = append(rOpts, responder.WithListenAddr(cfg.ListenAddr))
	}
	var trace *traceFile
	if opts.traceFile != "" {
		trace = &traceFile{}
		rOpts = append(rOpts, responder.WithTrace(trace))
	}

	r, err := responder.New(cfg, rOpts...)
	if err != nil {
		return err
	}
	log = log.With("responder", r.ID())

	if opts.configureInterface {
		if cfg.Interface == "" {
			return errors.New("--configure-interface needs --interface")
		}
		mask := net.IPMask(net.ParseIP(cfg.SubnetMask).To4())
		if err := netconf.NewConfigurator(log).SetStaticAddress(ctx, cfg.Interface, net.ParseIP(cfg.ServerAddress), mask); err != nil {
			return fmt.Errorf("configuring %s, are you running with administrative rights? %w", cfg.Interface, err)
		}
	}

	if opts.metricsAddr != "" {
		stopMetrics := serveMetrics(log, opts.metricsAddr)
		defer stopMetrics()
	}

	if trace != nil {
		if err := trace.create(opts.traceFile); err != nil {
			return err
		}
		defer trace.Close()
	}

	log.Infow("responder ready", "interface", cfg.Interface, "pool-start", cfg.PoolStart, "pool-end", cfg.PoolEnd)
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	if err := r.Stop(); err != nil {
		log.Warnw("stopping responder", "error", err)
	}
	return nil
}

// traceFile is handed to the responder before the capture file is
// opened, so the file is only created once the configuration has been
// accepted.
type traceFile struct {
	mu sync.Mutex
	f  *os.File
}

func (t *traceFile) create(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	t.mu.Lock()
	t.f = f
	t.mu.Unlock()
	return nil
}

func (t *traceFile) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return 0, os.ErrClosed
	}
	return t.f.Write(p)
}

func (t *traceFile) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

func serveMetrics(log *zap.SugaredLogger, addr string) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// statusSink returns a notify callback printing timestamped status
// lines to out.
func statusSink(out io.Writer, now func() time.Time) func(string) {
	var mu sync.Mutex
	return func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "[%s] %s\n", now().Format("15:04:05"), msg)
	}
}
