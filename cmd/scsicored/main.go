// Command scsicored is the daemon entry point: it assembles a bus.Bus from
// a config.BusConfig, attaches a Prometheus metrics registry and a
// filesystem-backed toolbox source, and serves selections until it receives
// an interrupt. This mirrors cmd/tcmufile's shape (open a device, attach a
// handler, block on a signal channel) adapted to a SCSI-2 parallel bus
// instead of a TCMU mailbox: there's no UIO device to open, so the thing we
// "attach" is a phy.Port, and the thing we block on is bus.Bus.Run returning
// after ctx is canceled.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/log"
	"github.com/sirupsen/logrus"

	"github.com/zuluscsi/scsicore/config"
	"github.com/zuluscsi/scsicore/metrics"
	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/target"
	"github.com/zuluscsi/scsicore/toolbox"
)

func main() {
	imagePath := flag.String("image", "", "path to the disk image backing LUN 0 (required)")
	writable := flag.Bool("writable", true, "allow writes to the image")
	vendor := flag.String("vendor", "ZULUSCSI", "INQUIRY vendor string")
	product := flag.String("product", "HARDDRIVE", "INQUIRY product string")
	ourID := flag.Int("id", 0, "our SCSI ID on the bus")
	toolboxDir := flag.String("toolbox-dir", "", "directory to expose over the vendor toolbox channel (empty disables it)")
	metricsAddr := flag.String("metrics-addr", ":9116", "address to serve /metrics on (empty disables it)")
	flag.Parse()

	logrus.SetLevel(logrus.InfoLevel)

	if *imagePath == "" {
		die("scsicored: -image is required")
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	busCfg := config.BusConfig{
		OurID: *ourID,
		Devices: []config.DeviceConfig{
			{
				ID:      0,
				Type:    target.DeviceFixed,
				Vendor:  *vendor,
				Product: *product,
				Image: config.ImageConfig{
					Kind:     config.ImageFile,
					Path:     *imagePath,
					Writable: *writable,
				},
			},
		},
	}

	b, err := busCfg.Build(m)
	if err != nil {
		die("scsicored: %v", err)
	}
	b.Port = phy.NewSimPort()
	if *toolboxDir != "" {
		b.ToolboxSource = toolbox.NewDirSource(*toolboxDir)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Errorf("scsicored: metrics server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nscsicored: received interrupt, stopping")
		cancel()
	}()

	fmt.Printf("scsicored: serving id %d, LUN 0 -> %s\n", *ourID, *imagePath)
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		die("scsicored: %v", err)
	}
}

func die(why string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, why+"\n", args...)
	os.Exit(1)
}
