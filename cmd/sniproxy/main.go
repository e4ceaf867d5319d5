/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command sniproxy runs the transparent SNI/HTTP-Host proxy: it parses a
// configuration file into listeners and routing tables, drives them from a
// single-threaded epoll reactor, and stops cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/nabbar/sniproxy/config"
	liblog "github.com/nabbar/sniproxy/logger"
	loglvl "github.com/nabbar/sniproxy/logger/level"
	"github.com/nabbar/sniproxy/proxy/listener"
	"github.com/nabbar/sniproxy/proxy/metrics"
	"github.com/nabbar/sniproxy/proxy/reactor"
	"github.com/nabbar/sniproxy/runner/startStop"
)

func main() {
	vip := spfvpr.New()

	cmd := &spfcbr.Command{
		Use:   "sniproxy",
		Short: "Transparent SNI / HTTP-Host TCP proxy",
		RunE: func(cmd *spfcbr.Command, args []string) error {
			return run(vip.GetString("config"), vip.GetInt("buffer-size"), vip.GetString("metrics-addr"))
		},
	}

	cmd.Flags().StringP("config", "c", "/etc/sniproxy/sniproxy.conf", "path to the configuration file")
	cmd.Flags().Int("buffer-size", 0, "per-connection ring buffer capacity in bytes (0 uses the built-in default)")
	cmd.Flags().String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables it)")
	_ = vip.BindPFlag("config", cmd.Flags().Lookup("config"))
	_ = vip.BindPFlag("buffer-size", cmd.Flags().Lookup("buffer-size"))
	_ = vip.BindPFlag("metrics-addr", cmd.Flags().Lookup("metrics-addr"))

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, bufCap int, metricsAddr string) error {
	log := liblog.New(context.Background())
	log.SetLevel(loglvl.InfoLevel)
	logFn := func() liblog.Logger { return log }

	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("sniproxy: open config: %w", err)
	}
	cfg, err := config.Parse(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("sniproxy: %w", err)
	}

	rc, err := reactor.New(bufCap, logFn)
	if err != nil {
		return fmt.Errorf("sniproxy: %w", err)
	}

	for i, lc := range cfg.Listeners {
		tbl, e := cfg.ResolveTable(lc.Table)
		if e != nil {
			return fmt.Errorf("sniproxy: listener #%d: %w", i, e)
		}

		lst, e := listener.New(lc.Addr, lc.Protocol, tbl, lc.Fallback, 0)
		if e != nil {
			return fmt.Errorf("sniproxy: listener #%d: bind %s: %w", i, lc.Addr.String(), e)
		}
		if e = rc.RegisterListener(lst); e != nil {
			return fmt.Errorf("sniproxy: listener #%d: register: %w", i, e)
		}
		log.Info("listening", nil, lst.Address().String(), lst.Protocol().String())
	}

	var metricsLn net.Listener
	if metricsAddr != "" {
		metricsLn, err = net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("sniproxy: metrics listen %s: %w", metricsAddr, err)
		}
	}

	if err = config.DropPrivileges(cfg.Username); err != nil {
		return fmt.Errorf("sniproxy: %w", err)
	}

	if metricsLn != nil {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(metrics.NewCollector(rc.Registry()))
		srv := &http.Server{Handler: metrics.Handler(promReg)}
		go func() {
			if e := srv.Serve(metricsLn); e != nil && e != http.ErrServerClosed {
				log.Error("metrics server", e, nil)
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", nil, metricsAddr)
	}

	svc := startStop.New(
		func(ctx context.Context) error {
			return rc.Run(ctx)
		},
		func(ctx context.Context) error {
			return nil
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dumpCh := make(chan os.Signal, 1)
	signal.Notify(dumpCh, syscall.SIGUSR1)
	defer signal.Stop(dumpCh)

	if err = svc.Start(ctx); err != nil {
		return fmt.Errorf("sniproxy: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down", nil)
			return svc.Stop(context.Background())
		case <-dumpCh:
			if _, e := rc.PrintConnections(); e != nil {
				log.Error("print_connections", e, nil)
			}
		}
	}
}
