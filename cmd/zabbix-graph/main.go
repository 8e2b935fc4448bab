// Command zabbix-graph prints the base64 encoded chart of a Zabbix item on
// stdout. It is the default renderer the gateway runs for /api/zabbix-graph.
// Diagnostics go to stderr and any failure exits 1.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/beezap/internal/common"
	"github.com/example/beezap/internal/zabbix"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "" {
		fail("Error: pass the Zabbix item id as the first argument.")
	}
	itemID := os.Args[1]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("zabbix-graph")
	if err != nil {
		fail("Error: load config: %v", err)
	}

	client, err := zabbix.NewClient(cfg.ZabbixURL, cfg.ZabbixUser, cfg.ZabbixPassword)
	if err != nil {
		fail("Error: %v", err)
	}
	if err := client.Login(ctx); err != nil {
		if errors.Is(err, zabbix.ErrLoginFailed) {
			fail("Error: %v", err)
		}
		fail("Error: network error contacting Zabbix: %v", err)
	}

	img, err := client.Chart(ctx, itemID, cfg.GraphPeriod, cfg.GraphWidth)
	if err != nil {
		fail("Error: network error contacting Zabbix: %v", err)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(img))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
