/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Command unicaster relays UDP datagrams for one or more remote peers
// between a public server instance and a private client instance, without
// either side ever running the game/voice/whatever application itself.
package main

import (
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sabouaram/unicaster/internal/config"
	"github.com/sabouaram/unicaster/internal/errcode"
	"github.com/sabouaram/unicaster/internal/logging"
	"github.com/sabouaram/unicaster/internal/relay"
	"github.com/sabouaram/unicaster/internal/stats"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if ec, ok := err.(*errcode.Error); ok {
			fmt.Fprintln(os.Stderr, ec.Error())
			os.Exit(int(ec.Code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliFlags holds the flag-bound strings that need parsing before they can be
// folded into a config.Config, plus the metrics address, which is not part of
// it. Flags that map directly onto cfg are bound to cfg itself instead.
type cliFlags struct {
	role        string
	localIP     string
	serverIP    string
	endpointIP  string
	logLevel    string
	metricsAddr string
}

func newRootCommand() *cobra.Command {
	cfg := config.Default()
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "unicaster",
		Short: "Relay UDP datagrams between a public server and a private client",
		Long: "The Wookiee Unicaster relays UDP datagrams for one or more remote peers\n" +
			"between a public-facing server instance and a client instance sitting\n" +
			"behind NAT, without either side running the relayed application itself.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runE(cmd, cfg, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.role, "role", "m", "", "instance role: server or client (required)")
	f.StringVarP(&cfg.Iface, "interface", "e", "", "local network interface to bind (mutually exclusive with -l)")
	f.StringVarP(&flags.localIP, "local-ip", "l", "", "local IP address to bind (mutually exclusive with -e)")
	f.IntVarP(&cfg.Peers, "peers", "p", config.DefaultPeers, "number of remote peers to support concurrently")
	f.IntVarP(&cfg.ListenPort, "listen-port", "i", 0, "admission listen port (server only, required)")
	f.StringVarP(&flags.serverIP, "server-ip", "s", "", "public server IP address (client only, required)")
	f.StringVarP(&flags.endpointIP, "endpoint-ip", "d", "", "private endpoint IP address (client only, required)")
	f.IntVarP(&cfg.EndpointPort, "endpoint-port", "o", 0, "private endpoint port (client only, required)")
	f.IntVar(&cfg.ServerBasePort, "server-relay-base-port", config.DefaultServerBasePort, "first port of the server's per-peer tunnel range")
	f.IntVar(&cfg.ClientBasePort, "client-relay-base-port", config.DefaultClientBasePort, "first port of the client's per-peer endpoint-facing range")
	f.StringVarP(&cfg.ConfigFile, "config", "c", "", "optional INI configuration file overriding built-in defaults")
	f.BoolVarP(&cfg.Quiet, "quiet", "q", false, "suppress all logging output")
	f.StringVar(&flags.logLevel, "log-level", "info", "logging level: debug, info, warn, error, silent")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runE(cmd *cobra.Command, cfg *config.Config, flags *cliFlags) error {
	cfg.Role = config.Role(flags.role)
	cfg.LogLevel = logging.ParseLevel(flags.logLevel)
	if cfg.Quiet {
		cfg.LogLevel = logging.SilentLevel
	}

	if flags.localIP != "" {
		ip, err := netip.ParseAddr(flags.localIP)
		if err == nil && !ip.Is4() {
			err = fmt.Errorf("%s is not an IPv4 address", ip)
		}
		if err != nil {
			return errcode.New(errcode.InvalidIP, err)
		}
		cfg.LocalIP = ip
	}
	if flags.serverIP != "" {
		ip, err := netip.ParseAddr(flags.serverIP)
		if err == nil && !ip.Is4() {
			err = fmt.Errorf("%s is not an IPv4 address", ip)
		}
		if err != nil {
			return errcode.New(errcode.InvalidIP, err)
		}
		cfg.ServerIP = ip
	}
	if flags.endpointIP != "" {
		ip, err := netip.ParseAddr(flags.endpointIP)
		if err == nil && !ip.Is4() {
			err = fmt.Errorf("%s is not an IPv4 address", ip)
		}
		if err != nil {
			return errcode.New(errcode.InvalidIP, err)
		}
		cfg.EndpointIP = ip
	}

	log := logging.New(cfg.LogLevel, os.Stderr)

	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil {
			return err
		}
		log.Info("configuration file loaded: %s", cfg.ConfigFile)
	} else {
		log.Info("no configuration file given, built-in defaults apply")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ResolveLocalIP(); err != nil {
		return err
	}

	if cfg.Role == config.RoleServer {
		log.Info("starting in SERVER mode, listening on %s:%d", cfg.LocalIP, cfg.ListenPort)
	} else {
		log.Info("starting in CLIENT mode, connecting to %s and forwarding to %s:%d", cfg.ServerIP, cfg.EndpointIP, cfg.EndpointPort)
	}

	registry := prometheus.NewRegistry()
	counters := stats.New(registry)

	if flags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: flags.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped: %s", err)
			}
		}()
		defer srv.Close()
		log.Info("serving metrics on %s", flags.metricsAddr)
	}

	sup, err := relay.New(cfg, log, counters)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup.Run(ctx)

	return nil
}
