// Copyright 2025 The LAMA Jockey Authors
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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/lama-robotics/jockey/internal/config"
	"github.com/lama-robotics/jockey/internal/simjockey"
	"github.com/lama-robotics/jockey/jockeygrpc"
	"github.com/lama-robotics/jockey/jockeysrv"
	"github.com/lama-robotics/jockey/log"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulated localizing jockey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lis, err := net.Listen("tcp", a.cfg.Listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", a.cfg.Listen, err)
			}
			var metricsLis net.Listener
			if a.cfg.MetricsListen != "" {
				if metricsLis, err = net.Listen("tcp", a.cfg.MetricsListen); err != nil {
					_ = lis.Close()
					return fmt.Errorf("failed to listen on %s: %w", a.cfg.MetricsListen, err)
				}
			}
			return serve(cmd.Context(), a.cfg, lis, metricsLis, cmd.ErrOrStderr())
		},
	}
}

// serve runs the gRPC endpoint and the optional metrics endpoint until ctx is canceled.
// The active goal is canceled before the servers are stopped.
func serve(ctx context.Context, cfg *config.Config, lis, metricsLis net.Listener, logOut io.Writer) error {
	logger := newLogger(cfg, logOut)
	ctx = log.WithLogger(ctx, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := jockeysrv.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	server := jockeysrv.NewServer(
		simjockey.New(cfg.SimJockey()),
		jockeysrv.WithLogger(logger),
		jockeysrv.WithMetrics(metrics),
	)
	grpcServer := grpc.NewServer()
	jockeygrpc.NewHandler(server).RegisterWith(grpcServer)

	var httpServer *http.Server
	if metricsLis != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info(ctx, "serving localizing jockey", "addr", lis.Addr().String())
		return grpcServer.Serve(lis)
	})
	if httpServer != nil {
		group.Go(func() error {
			log.Info(ctx, "serving metrics", "addr", metricsLis.Addr().String())
			if err := httpServer.Serve(metricsLis); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		log.Info(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Cancel(shutdownCtx); err != nil {
			log.Warn(ctx, "failed to cancel the active goal", "error", err)
		}
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		if httpServer != nil {
			return httpServer.Shutdown(shutdownCtx)
		}
		return nil
	})
	return group.Wait()
}
