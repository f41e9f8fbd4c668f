package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/nettools/internal/probes"
	"github.com/user/nettools/internal/reconcile"
	"github.com/user/nettools/internal/storage"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one network scan and print the result",
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	settings := storage.NewSettingsStorage(db)
	scanner := probes.NewScanner(probes.NewRunner(), cfg.ScanInterface)
	reconciler := reconcile.New(storage.NewScanStore(db))
	scanRunner := reconcile.NewRunner(scanner, reconciler, nil, settings)

	summary, err := scanRunner.RunScan(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Found %d devices (%d new, %d known)\n",
		summary.Found, summary.New, summary.Updated)

	devices, err := storage.NewDeviceStorage(db).List(context.Background())
	if err != nil {
		return err
	}
	for _, d := range devices {
		state := "offline"
		if d.IsOnline {
			state = "online"
		}
		name := d.Hostname
		if d.CustomName != "" {
			name = d.CustomName
		}
		fmt.Printf("  %-15s  %-17s  %-10s  %-7s  %s\n",
			d.IPAddress, d.MACAddress, d.DeviceType, state, name)
	}
	return nil
}
