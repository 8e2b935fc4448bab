// Command dispatcher is the Zabbix alert script. Zabbix invokes it as
//
//	dispatcher <recipient> <subject> <body>
//
// and it forwards the alert to the gateway's graph endpoint. It always exits
// 0 so Zabbix never marks the action as failed because of this relay; the
// outcome is recorded in the daily log file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/beezap/internal/common"
	"github.com/example/beezap/internal/dispatcher"
	"github.com/example/beezap/internal/logfile"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("dispatcher")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return
	}
	common.SetClock(cfg.Location)

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(common.ExecutableDir(), "logs")
	}
	out := logfile.NewDailyWriter(logDir, cfg.Location)
	defer out.Close()
	logger := common.NewLineLogger(out, cfg.LogLevel)

	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry disabled")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	d := dispatcher.Dispatcher{
		URL:     cfg.GatewayURL,
		Timeout: cfg.DispatchTimeout,
		Logger:  logger,
	}
	// the error is already in the log file
	_ = d.Run(ctx, os.Args[1:])
}
