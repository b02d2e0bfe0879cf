package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/samsamfire/candash/pkg/gateway/http"
	log "github.com/sirupsen/logrus"
)

var DEFAULT_GATEWAY = "http://localhost:8090"

const usage = `usage: candash_client [-a address] command [args]
commands:
  json               dump every parameter
  get <id>           read a parameter
  set <id> <value>   write a parameter
  request <id>       fire-and-forget read
  save               save parameters on the device
  cells              BMS cell voltages
  log                recent CAN traffic
  send <id> <hex>    queue a raw frame
  stats              SDO counters
  status             immobilizer status
  lock | unlock | toggle
  autolock <on|off>  lock on heartbeat loss
  digit <d>          enter a PIN digit
  select <d>         select the pending digit
  next | prev        step the pending digit
  confirm            enter the pending digit`

func main() {
	log.SetLevel(log.WarnLevel)
	address := flag.String("a", DEFAULT_GATEWAY, "gateway base url")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	client := http.NewGatewayClient(*address)
	result, err := run(client, args[0], args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if result == nil {
		fmt.Println("OK")
		return
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func argId(args []string, max uint64) (uint64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing id")
	}
	id, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil || id > max {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func run(client *http.GatewayClient, command string, args []string) (any, error) {
	switch command {
	case "json":
		return client.Snapshot()
	case "get":
		id, err := argId(args, 0xFFFF)
		if err != nil {
			return nil, err
		}
		return client.Read(uint16(id))
	case "set":
		id, err := argId(args, 0xFFFF)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("missing value")
		}
		return nil, client.Write(uint16(id), args[1])
	case "request":
		id, err := argId(args, 0xFFFF)
		if err != nil {
			return nil, err
		}
		return nil, client.Request(uint16(id))
	case "save":
		return nil, client.Save()
	case "cells":
		return client.Cells()
	case "log":
		return client.Traffic()
	case "send":
		id, err := argId(args, 0x7FF)
		if err != nil {
			return nil, err
		}
		data := ""
		if len(args) > 1 {
			data = args[1]
		}
		return nil, client.Send(uint32(id), data)
	case "stats":
		return client.SDOStats()
	case "status":
		return client.Immobilizer()
	case "lock":
		return nil, client.Lock()
	case "unlock":
		return nil, client.Unlock()
	case "toggle":
		return nil, client.Toggle()
	case "autolock":
		if len(args) < 1 {
			return nil, fmt.Errorf("missing on|off")
		}
		return nil, client.SetAutoLock(args[0] == "on")
	case "digit":
		d, err := argId(args, 9)
		if err != nil {
			return nil, err
		}
		return nil, client.EnterDigit(uint8(d))
	case "select":
		d, err := argId(args, 9)
		if err != nil {
			return nil, err
		}
		return nil, client.SelectDigit(uint8(d))
	case "next":
		return nil, client.NextDigit()
	case "prev":
		return nil, client.PrevDigit()
	case "confirm":
		return nil, client.ConfirmDigit()
	}
	return nil, fmt.Errorf("unknown command %q\n%s", command, usage)
}
