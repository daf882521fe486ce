/*
 * MIT License
 *
 * Copyright (c) 2026 Nguyen Thanh Phuong
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
 */

package commands

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:       "service [install|uninstall|start|stop|run]",
	Short:     "Manage gpustatd as a system service",
	Long: `Install, remove or control gpustatd as a system service (systemd,
launchd or Windows SCM depending on the platform).

The 'run' action is what the service manager invokes; it starts the HTTP
service exactly like 'gpustatd serve'.

Examples:
  sudo gpustatd service install
  sudo gpustatd service start`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
	RunE:      runService,
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}

// program adapts the HTTP service to the service manager lifecycle.
type program struct {
	stop chan struct{}
	done chan struct{}
	err  error
}

func (p *program) Start(_ service.Service) error {
	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)

	cfg, err := loadConfig()
	if err != nil {
		p.err = err
		return
	}
	logger := InitLogger(cfg.LogLevel, cfg.LogFile)
	p.err = serve(cfg, logger, p.stop)
}

func (p *program) Stop(_ service.Service) error {
	close(p.stop)
	<-p.done
	return p.err
}

func runService(_ *cobra.Command, args []string) error {
	prg := &program{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	svcConfig := &service.Config{
		Name:        "gpustatd",
		DisplayName: "gpustatd monitoring service",
		Description: "Host metrics monitoring service with HTTP API and dashboard.",
		Arguments:   []string{"service", "run"},
	}
	if configFile != "" {
		svcConfig.Arguments = append(svcConfig.Arguments, "--config", configFile)
	}

	svc, err := service.New(prg, svcConfig)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	action := args[0]
	switch action {
	case "run":
		return svc.Run()
	case "install", "uninstall", "start", "stop":
		if err := service.Control(svc, action); err != nil {
			return fmt.Errorf("service %s failed: %w", action, err)
		}
		fmt.Printf("Service %s: ok\n", action)
		return nil
	default:
		return fmt.Errorf("unknown service action: %s", action)
	}
}
