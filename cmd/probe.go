// Copyright 2025 The amqpwire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/packetd/amqpwire/confengine"
	"github.com/packetd/amqpwire/internal/rescue"
	"github.com/packetd/amqpwire/internal/sigs"
	"github.com/packetd/amqpwire/logger"
	"github.com/packetd/amqpwire/transport"
)

// probeConfig probe 模式配置 可由 YAML 或命令行给出
type probeConfig struct {
	Transport transport.Config `config:"transport"`
	Logger    logger.Options   `config:"logger"`

	MetricsListen string `config:"metricsListen"`
	MaxFrames     int    `config:"maxFrames"`
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Connect to a broker then negotiate and dump incoming frames",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := probeConfig{MaxFrames: 16}
		if probeConfigPath != "" {
			conf, err := confengine.LoadConfigPath(probeConfigPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
				os.Exit(1)
			}
			if err := conf.Unpack(&cfg); err != nil {
				fmt.Fprintf(os.Stderr, "failed to unpack config: %v\n", err)
				os.Exit(1)
			}
		}
		if probeHost != "" {
			cfg.Transport.Host = probeHost
		}
		if cfg.Logger != (logger.Options{}) {
			logger.SetOptions(cfg.Logger)
		}

		if cfg.MetricsListen != "" {
			go serveMetrics(cfg.MetricsListen)
		}

		if err := runProbe(cfg); err != nil {
			logger.Errorf("probe failed: %v", err)
			os.Exit(1)
		}
	},
	Example: "# amqpwire probe --host broker.local:5672",
}

var (
	probeConfigPath string
	probeHost       string
)

func init() {
	probeCmd.Flags().StringVar(&probeConfigPath, "config", "", "Configuration file path")
	probeCmd.Flags().StringVar(&probeHost, "host", "", "Broker address host[:port]")
	rootCmd.AddCommand(probeCmd)
}

func serveMetrics(listen string) {
	defer rescue.HandleCrash()

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if err := http.ListenAndServe(listen, router); err != nil {
		logger.Errorf("metrics server exited: %v", err)
	}
}

// runProbe 建连 协商 然后持续打印收到的帧 直到帧数耗尽或收到终止信号
func runProbe(cfg probeConfig) error {
	if cfg.Transport.ReadTimeout <= 0 {
		cfg.Transport.ReadTimeout = 5 * time.Second
	}

	conn, err := transport.New(cfg.Transport)
	if err != nil {
		return err
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Negotiate(); err != nil {
		return err
	}
	logger.Infof("negotiated with %s", cfg.Transport.Host)

	done := sigs.Terminate()
	for i := 0; i < cfg.MaxFrames; i++ {
		select {
		case <-done:
			return nil
		default:
		}

		recv, err := conn.ReceiveFrame(transport.ExpectAny)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			return err
		}
		printFrame(recv)
	}
	return nil
}

func printFrame(recv transport.Received) {
	view := map[string]any{"channel": recv.Channel}
	switch {
	case recv.Proto != nil:
		view["proto"] = recv.Proto.ProtoID
	case recv.Performative != nil:
		view["performative"] = recv.Performative.Name()
		view["payloadBytes"] = len(recv.Payload)
	default:
		view["heartbeat"] = true
	}

	b, err := json.Marshal(view)
	if err != nil {
		logger.Warnf("marshal frame: %v", err)
		return
	}
	fmt.Println(string(b))
}
