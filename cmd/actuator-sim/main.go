// Actuator simulator.
//
// Speaks the turret wire protocol on TCP so the doll can be developed
// and demoed without the physical pan-tilt hardware.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
	"github.com/fablab-bergamo/squid-game-doll/pkg/turret"
)

func main() {
	addr := flag.String("addr", ":15555", "listen address")
	hMin := flag.Float64("hmin", 30, "horizontal axis minimum, degrees")
	hMax := flag.Float64("hmax", 150, "horizontal axis maximum, degrees")
	vMin := flag.Float64("vmin", 0, "vertical axis minimum, degrees")
	vMax := flag.Float64("vmax", 120, "vertical axis maximum, degrees")
	flag.Parse()

	log.Init("")

	limits := turret.ServoLimits{HMin: *hMin, HMax: *hMax, VMin: *vMin, VMax: *vMax}
	if !limits.Valid() {
		fmt.Fprintln(os.Stderr, "Error: empty axis range")
		os.Exit(1)
	}

	sim := turret.NewSimulator(limits)
	if err := sim.Start(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sim.Close()

	log.Info("actuator simulator listening", "addr", sim.Addr(),
		"h", fmt.Sprintf("[%.0f,%.0f]", limits.HMin, limits.HMax),
		"v", fmt.Sprintf("[%.0f,%.0f]", limits.VMin, limits.VMax))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("simulator stopped")
}
