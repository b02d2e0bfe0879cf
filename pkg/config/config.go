package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/samsamfire/candash/pkg/immobilizer"
	"github.com/samsamfire/candash/pkg/rfid"
	"github.com/samsamfire/candash/pkg/router"
	"github.com/samsamfire/candash/pkg/sdo"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the whole gateway configuration
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	CAN         CANConfig         `yaml:"can"`
	SDO         SDOConfig         `yaml:"sdo"`
	Router      RouterConfig      `yaml:"router"`
	Immobilizer ImmobilizerConfig `yaml:"immobilizer"`
	RFID        RFIDConfig        `yaml:"rfid"`
	HTTP        HTTPConfig        `yaml:"http"`
	Parameters  ParametersConfig  `yaml:"parameters"`
}

type CANConfig struct {
	Interface string `yaml:"interface"` // "socketcan" or "virtualcan"
	Channel   string `yaml:"channel"`   // e.g. can0, or host:port for virtualcan
	Bitrate   int    `yaml:"bitrate"`
	NodeID    uint8  `yaml:"node_id"`
	RxQueue   int    `yaml:"rx_queue"`
	TxQueue   int    `yaml:"tx_queue"`
}

type SDOConfig struct {
	TxBase    uint32 `yaml:"tx_base"`
	RxBase    uint32 `yaml:"rx_base"`
	Index     uint16 `yaml:"index"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Retries   int    `yaml:"retries"`
}

type RouterConfig struct {
	// Index used by fire-and-forget requests
	Index               uint16         `yaml:"index"`
	BMSRanges           []router.Range `yaml:"bms_ranges"`
	ConnectionTimeoutMs int            `yaml:"connection_timeout_ms"`
	TrafficLogSize      int            `yaml:"traffic_log_size"`
	CellCapacity        int            `yaml:"cell_capacity"`
}

type ImmobilizerConfig struct {
	Enabled            bool       `yaml:"enabled"`
	Pin                []uint8    `yaml:"pin"`
	AuthorizedTags     []rfid.Tag `yaml:"authorized_tags"`
	EnforceParam       uint8      `yaml:"enforce_param"`
	Index              uint16     `yaml:"index"`
	LockedCurrent      int32      `yaml:"locked_current"`
	UnlockedCurrent    int32      `yaml:"unlocked_current"`
	IntervalMs         int        `yaml:"interval_ms"`
	HeartbeatID        uint32     `yaml:"heartbeat_id"`
	HeartbeatTimeoutMs int        `yaml:"heartbeat_timeout_ms"`
	AutoLock           bool       `yaml:"auto_lock"`
	TagDebounceMs      int        `yaml:"tag_debounce_ms"`
	StatusFrame        bool       `yaml:"status_frame"`
	StatusID           uint32     `yaml:"status_id"`
}

type RFIDConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

type HTTPConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	BroadcastPeriodMs int    `yaml:"broadcast_period_ms"`
}

type ParametersConfig struct {
	// JSON or INI definition file, chosen by extension
	File     string `yaml:"file"`
	Capacity int    `yaml:"capacity"`
}

func Default() *Config {
	sdoDefaults := sdo.DefaultConfig(3)
	routerDefaults := router.DefaultConfig(3)
	immDefaults := immobilizer.DefaultConfig()
	return &Config{
		LogLevel: "info",
		CAN: CANConfig{
			Interface: "socketcan",
			Channel:   "can0",
			Bitrate:   500000,
			NodeID:    3,
			RxQueue:   32,
			TxQueue:   16,
		},
		SDO: SDOConfig{
			TxBase:    sdoDefaults.TxBase,
			RxBase:    sdoDefaults.RxBase,
			Index:     sdoDefaults.Index,
			TimeoutMs: int(sdoDefaults.Timeout / time.Millisecond),
			Retries:   sdoDefaults.Retries,
		},
		Router: RouterConfig{
			Index:               routerDefaults.SdoIndex,
			BMSRanges:           routerDefaults.BMSRanges,
			ConnectionTimeoutMs: int(routerDefaults.ConnectionTimeout / time.Millisecond),
			TrafficLogSize:      router.DefaultTrafficLogSize,
			CellCapacity:        routerDefaults.CellCapacity,
		},
		Immobilizer: ImmobilizerConfig{
			Enabled:            true,
			Pin:                immDefaults.Pin[:],
			AuthorizedTags:     immDefaults.AuthorizedTags,
			EnforceParam:       immDefaults.EnforceParam,
			Index:              immDefaults.Index,
			LockedCurrent:      immDefaults.LockedCurrent,
			UnlockedCurrent:    immDefaults.UnlockedCurrent,
			IntervalMs:         int(immDefaults.Interval / time.Millisecond),
			HeartbeatID:        immDefaults.HeartbeatId,
			HeartbeatTimeoutMs: int(immDefaults.HeartbeatTimeout / time.Millisecond),
			AutoLock:           false,
			TagDebounceMs:      int(immDefaults.TagDebounce / time.Millisecond),
			StatusFrame:        false,
			StatusID:           immDefaults.StatusId,
		},
		RFID: RFIDConfig{
			Enabled:  false,
			Port:     "/dev/ttyRFID",
			BaudRate: rfid.DefaultBaudRate,
		},
		HTTP: HTTPConfig{
			ListenAddr:        ":8090",
			BroadcastPeriodMs: 250,
		},
		Parameters: ParametersConfig{
			File:     "parameters.json",
			Capacity: 64,
		},
	}
}

// Load reads a YAML file on top of the defaults.
// A missing file yields the defaults, a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("[CONFIG] no config at %s, using defaults", path)
	} else if err != nil {
		return nil, err
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s : %w", path, err)
	} else {
		log.Infof("[CONFIG] loaded from %s", path)
	}
	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// Environment overrides, handy on the bench
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CANDASH_CAN_INTERFACE"); v != "" {
		c.CAN.Interface = v
	}
	if v := os.Getenv("CANDASH_CAN_CHANNEL"); v != "" {
		c.CAN.Channel = v
	}
	if v := os.Getenv("CANDASH_HTTP_LISTEN"); v != "" {
		c.HTTP.ListenAddr = v
	}
	if v := os.Getenv("CANDASH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CANDASH_NODE_ID"); v != "" {
		id, err := strconv.ParseUint(v, 0, 8)
		if err != nil {
			log.Warnf("[CONFIG] ignoring CANDASH_NODE_ID=%q : %v", v, err)
			return
		}
		c.CAN.NodeID = uint8(id)
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (c *Config) SDOClient() sdo.Config {
	config := sdo.DefaultConfig(c.CAN.NodeID)
	config.TxBase = c.SDO.TxBase
	config.RxBase = c.SDO.RxBase
	config.Index = c.SDO.Index
	config.Timeout = ms(c.SDO.TimeoutMs)
	config.Retries = c.SDO.Retries
	return config
}

func (c *Config) FrameRouter() router.Config {
	config := router.DefaultConfig(c.CAN.NodeID)
	config.SdoTxBase = c.SDO.TxBase
	config.SdoRxBase = c.SDO.RxBase
	config.SdoIndex = c.Router.Index
	config.BMSRanges = c.Router.BMSRanges
	config.ConnectionTimeout = ms(c.Router.ConnectionTimeoutMs)
	config.CellCapacity = c.Router.CellCapacity
	return config
}

func (c *Config) ImmobilizerPolicy() immobilizer.Config {
	config := immobilizer.DefaultConfig()
	copy(config.Pin[:], c.Immobilizer.Pin)
	config.AuthorizedTags = c.Immobilizer.AuthorizedTags
	config.EnforceParam = c.Immobilizer.EnforceParam
	config.Index = c.Immobilizer.Index
	config.LockedCurrent = c.Immobilizer.LockedCurrent
	config.UnlockedCurrent = c.Immobilizer.UnlockedCurrent
	config.Interval = ms(c.Immobilizer.IntervalMs)
	config.HeartbeatId = c.Immobilizer.HeartbeatID
	config.HeartbeatTimeout = ms(c.Immobilizer.HeartbeatTimeoutMs)
	config.AutoLock = c.Immobilizer.AutoLock
	config.TagDebounce = ms(c.Immobilizer.TagDebounceMs)
	config.StatusFrame = c.Immobilizer.StatusFrame
	config.StatusId = c.Immobilizer.StatusID
	return config
}

func (c *Config) SerialReader() rfid.SerialConfig {
	return rfid.SerialConfig{Port: c.RFID.Port, BaudRate: c.RFID.BaudRate}
}
