package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samsamfire/candash/pkg/can"
	_ "github.com/samsamfire/candash/pkg/can/socketcan"
	_ "github.com/samsamfire/candash/pkg/can/virtual"
	"github.com/samsamfire/candash/pkg/config"
	"github.com/samsamfire/candash/pkg/gateway"
	"github.com/samsamfire/candash/pkg/gateway/http"
	"github.com/samsamfire/candash/pkg/param"
	"github.com/samsamfire/candash/pkg/rfid"
	log "github.com/sirupsen/logrus"
)

var DEFAULT_CONFIG = "candash.yaml"

func main() {
	// Command line arguments
	configPath := flag.String("c", DEFAULT_CONFIG, "yaml configuration file")
	canInterface := flag.String("t", "", "can interface type e.g. socketcan, virtualcan")
	channel := flag.String("i", "", "can channel e.g. can0, vcan0, localhost:18888")
	listen := flag.String("l", "", "http listen address e.g. :8090")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[CONFIG] %v", err)
	}
	if *canInterface != "" {
		cfg.CAN.Interface = *canInterface
	}
	if *channel != "" {
		cfg.CAN.Channel = *channel
	}
	if *listen != "" {
		cfg.HTTP.ListenAddr = *listen
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	if *verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	defs, err := param.LoadFile(cfg.Parameters.File)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warnf("[PARAM] no definition file %v, nothing will be cached", cfg.Parameters.File)
	} else if err != nil {
		log.Fatalf("[PARAM] %v", err)
	}

	bus, err := can.NewBus(cfg.CAN.Interface, cfg.CAN.Channel, cfg.CAN.Bitrate)
	if err != nil {
		log.Fatalf("[CAN] %v", err)
	}
	gw, err := gateway.New(bus, cfg, defs)
	if err != nil {
		log.Fatalf("[GATEWAY] %v", err)
	}
	err = gw.Connect()
	if err != nil {
		log.Fatalf("[CAN] connecting to %v : %v", cfg.CAN.Channel, err)
	}
	defer gw.Disconnect()

	if cfg.RFID.Enabled {
		reader, err := rfid.OpenSerial(cfg.SerialReader())
		if err != nil {
			log.Warnf("[RFID] tag reader unavailable : %v", err)
		} else {
			gw.SetTagReader(reader)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := http.NewGatewayServer(gw, time.Duration(cfg.HTTP.BroadcastPeriodMs)*time.Millisecond)
	go func() {
		err := server.ListenAndServe(cfg.HTTP.ListenAddr)
		if err != nil {
			log.Errorf("[HTTP] %v", err)
			stop()
		}
	}()
	gw.Run(ctx)
}
