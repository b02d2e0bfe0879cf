package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/config"
	"github.com/samsamfire/candash/pkg/immobilizer"
	"github.com/samsamfire/candash/pkg/param"
	"github.com/samsamfire/candash/pkg/rfid"
	"github.com/samsamfire/candash/pkg/router"
	"github.com/samsamfire/candash/pkg/sdo"
	log "github.com/sirupsen/logrus"
)

const DefaultPeriod = 10 * time.Millisecond

var ErrImmobilizerDisabled = errors.New("immobilizer is disabled")

// Gateway ties the bus manager, the parameter store, the SDO client,
// the frame router and the immobilizer together and drives them
// from a single periodic tick.
type Gateway struct {
	bus     candash.Bus
	bm      *candash.BusManager
	store   *param.Store
	client  *sdo.Client
	router  *router.Router
	traffic *router.TrafficLog
	imm     *immobilizer.Immobilizer
	reader  rfid.Reader
	period  time.Duration
	now     func() time.Time
}

// Create a gateway on the given bus. defs are declared in the store
// before anything is dispatched.
// The SDO client is subscribed before the router so that responses of a
// pending transaction are never stolen by the fire-and-forget path.
func New(bus candash.Bus, cfg *config.Config, defs []param.Definition) (*Gateway, error) {
	if cfg == nil {
		return nil, candash.ErrIllegalArgument
	}
	bm := candash.NewBusManager(bus, cfg.CAN.RxQueue, cfg.CAN.TxQueue)
	store := param.NewStore(cfg.Parameters.Capacity)
	if _, err := store.Load(defs); err != nil {
		return nil, fmt.Errorf("declaring parameters : %w", err)
	}

	client, err := sdo.NewClient(bm, store, cfg.SDOClient())
	if err != nil {
		return nil, err
	}
	rt, err := router.NewRouter(bm, store, cfg.FrameRouter())
	if err != nil {
		return nil, err
	}
	rt.SetSDOHandler(client.HandleUnsolicited)
	bm.Subscribe(client)
	bm.Subscribe(rt)

	traffic := router.NewTrafficLog(cfg.Router.TrafficLogSize)
	bm.AddTap(traffic)

	gw := &Gateway{
		bus:     bus,
		bm:      bm,
		store:   store,
		client:  client,
		router:  rt,
		traffic: traffic,
		period:  DefaultPeriod,
		now:     time.Now,
	}
	if cfg.Immobilizer.Enabled {
		imm, err := immobilizer.New(client, bm, cfg.ImmobilizerPolicy())
		if err != nil {
			return nil, err
		}
		bm.AddTap(imm)
		gw.imm = imm
	}
	return gw, nil
}

// Subscribe the bus manager to the bus and connect
func (gw *Gateway) Connect(args ...any) error {
	if gw.bus == nil {
		return candash.ErrNoBus
	}
	if err := gw.bus.Subscribe(gw.bm); err != nil {
		return err
	}
	return gw.bus.Connect(args...)
}

func (gw *Gateway) Disconnect() {
	if gw.reader != nil {
		if err := gw.reader.Close(); err != nil {
			log.Warnf("[GATEWAY] closing tag reader : %v", err)
		}
	}
	if gw.bus != nil {
		if err := gw.bus.Disconnect(); err != nil {
			log.Warnf("[GATEWAY] disconnecting bus : %v", err)
		}
	}
}

// Set a tag reader, tags are presented to the immobilizer while running
func (gw *Gateway) SetTagReader(reader rfid.Reader) {
	gw.reader = reader
}

// Set the tick period of [Gateway.Run]
func (gw *Gateway) SetPeriod(period time.Duration) {
	if period > 0 {
		gw.period = period
	}
}

// Set time source for every component
func (gw *Gateway) SetClock(now func() time.Time) {
	gw.now = now
	gw.bm.SetClock(now)
	gw.store.SetClock(now)
	gw.router.SetClock(now)
	if gw.imm != nil {
		gw.imm.SetClock(now)
	}
}

// Process one tick : dispatch received frames, update liveness,
// run the immobilizer and flush queued frames
func (gw *Gateway) Process(now time.Time) {
	gw.bm.Dispatch()
	gw.router.Process(now)
	if gw.imm != nil {
		if err := gw.imm.Process(now); err != nil {
			log.Debugf("[GATEWAY] enforcement : %v", err)
		}
	}
	_, err := gw.bm.Flush()
	if err != nil {
		log.Debugf("[GATEWAY] flush : %v", err)
	}
}

// Run processes the gateway periodically until the context is done
func (gw *Gateway) Run(ctx context.Context) error {
	if gw.reader != nil && gw.imm != nil {
		go gw.watchTags(ctx)
	}
	ticker := time.NewTicker(gw.period)
	defer ticker.Stop()
	log.Infof("[GATEWAY] running every %v", gw.period)
	for {
		select {
		case <-ctx.Done():
			log.Info("[GATEWAY] stopped")
			return nil
		case <-ticker.C:
			gw.Process(gw.now())
		}
	}
}

func (gw *Gateway) watchTags(ctx context.Context) {
	err := rfid.Watch(ctx, gw.reader, func(tag rfid.Tag) {
		if gw.imm.PresentTag(tag) {
			log.Infof("[GATEWAY] tag %v accepted", tag)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("[GATEWAY] tag reader stopped : %v", err)
	}
}

func (gw *Gateway) BusManager() *candash.BusManager {
	return gw.bm
}

func (gw *Gateway) Store() *param.Store {
	return gw.store
}

func (gw *Gateway) SDO() *sdo.Client {
	return gw.client
}

func (gw *Gateway) Router() *router.Router {
	return gw.router
}

func (gw *Gateway) Traffic() *router.TrafficLog {
	return gw.traffic
}

// Immobilizer is nil when disabled
func (gw *Gateway) Immobilizer() *immobilizer.Immobilizer {
	return gw.imm
}

func (gw *Gateway) Now() time.Time {
	return gw.now()
}
