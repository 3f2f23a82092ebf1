package main

import (
	"github.com/rollpad/rollpad.go/pkg/cli/sh"
	"github.com/rollpad/rollpad.go/pkg/device"

	_ "github.com/rollpad/rollpad.go/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	device.SetupFlags()
}

func main() {
	sh.Main()
}
