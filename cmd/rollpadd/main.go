package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"

	"github.com/golang/glog"

	"github.com/rollpad/rollpad.go/pkg/device"
	"github.com/rollpad/rollpad.go/pkg/display"
	"github.com/rollpad/rollpad.go/pkg/framework"
	"github.com/rollpad/rollpad.go/pkg/link"
	"github.com/rollpad/rollpad.go/pkg/link/ble"
	"github.com/rollpad/rollpad.go/pkg/link/mqtt"
	"github.com/rollpad/rollpad.go/pkg/store"
)

var (
	linkKind  = "ble"
	brokerURL = "tcp://127.0.0.1:1883"
)

func init() {
	device.SetupFlags()
	flag.StringVar(&linkKind, "link", linkKind, "Peer transport: ble or mqtt.")
	flag.StringVar(&brokerURL, "mqtt", brokerURL, "Broker URL when -link=mqtt.")
}

func main() {
	flag.Parse()

	cfg := device.NewConfig()
	st := store.New(cfg.StoreConfig())
	if err := st.Load(); err != nil {
		glog.Warningf("load stored data: %v, starting empty", err)
	}

	loop := framework.NewLoop()
	lnk, err := newLink(cfg, loop)
	if err != nil {
		glog.Exitf("link setup: %v", err)
	}
	loop.Add(device.NewCore(cfg, st, display.LogScreen{}, lnk))
	loop.RunOrFail()
}

func newLink(cfg *device.Config, sink link.EventSink) (link.Link, error) {
	switch linkKind {
	case "ble":
		return ble.New(cfg.Name, sink), nil
	case "mqtt":
		return mqtt.New(brokerURL, sink)
	}
	return nil, fmt.Errorf("unknown link type %q", linkKind)
}
