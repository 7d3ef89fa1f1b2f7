// Turret CLI.
//
// Interactive protocol client for turret bring-up: move the axes, run
// the self-test sequence, and toggle the laser from a terminal.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fablab-bergamo/squid-game-doll/internal/config"
	"github.com/fablab-bergamo/squid-game-doll/internal/log"
	"github.com/fablab-bergamo/squid-game-doll/pkg/turret"
)

const usage = `commands:
  limits            query axis limits
  angles            query current position
  set H V           set absolute angles (degrees)
  norm X Y          set target by normalized coordinate [0,1]
  on | off          laser emission
  test | stop       diagnostic motion sequence
  head 0|1          doll head away/facing
  quit              exit`

func main() {
	log.Init("warn")

	cfg := config.Default()
	cfg.Turret.Host = config.TurretHostRequired(cfg)

	linkCfg := turret.DefaultLinkConfig(cfg.Turret.Addr())
	// Interactive use; no control loop to throttle for.
	linkCfg.MinInterval = 50 * time.Millisecond
	link := turret.NewLink(linkCfg)
	defer link.Close()

	fmt.Printf("Turret CLI %s\n%s\n", cfg.Turret.Addr(), usage)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "quit" {
			return
		}
		if err := dispatch(link, fields); err != nil {
			fmt.Printf("error: %v\n", err)
			if !link.Reachable() {
				fmt.Println("turret unreachable, giving up")
				return
			}
		}
	}
}

func dispatch(link *turret.Link, fields []string) error {
	switch fields[0] {
	case "limits":
		lim, err := link.Limits()
		if err != nil {
			return err
		}
		fmt.Printf("H [%.1f, %.1f]  V [%.1f, %.1f]\n", lim.HMin, lim.HMax, lim.VMin, lim.VMax)
		return nil

	case "angles":
		a, err := link.Angles()
		if err != nil {
			return err
		}
		fmt.Printf("H %.2f  V %.2f\n", a.H, a.V)
		return nil

	case "set":
		h, v, err := twoFloats(fields)
		if err != nil {
			return err
		}
		return link.SetAngles(turret.ServoAngles{H: h, V: v})

	case "norm":
		x, y, err := twoFloats(fields)
		if err != nil {
			return err
		}
		return link.SetNormalized(x, y)

	case "on":
		return link.SetLaser(true)
	case "off":
		return link.SetLaser(false)
	case "test":
		return link.StartSelfTest()
	case "stop":
		return link.StopSelfTest()

	case "head":
		if len(fields) != 2 {
			return fmt.Errorf("usage: head 0|1")
		}
		return link.RotateHead(fields[1] == "1")

	default:
		fmt.Println(usage)
		return nil
	}
}

func twoFloats(fields []string) (float64, float64, error) {
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("usage: %s A B", fields[0])
	}
	a, err1 := strconv.ParseFloat(fields[1], 64)
	b, err2 := strconv.ParseFloat(fields[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("bad number")
	}
	return a, b, nil
}
