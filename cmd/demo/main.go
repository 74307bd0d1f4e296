package main

import (
	"flag"
	"fmt"
	"os"

	"energy-net/internal/config"
	"energy-net/internal/controller"
	"energy-net/internal/env"
	"energy-net/internal/episode"
	"energy-net/internal/strategy"
)

// Demo:
// - Load a market config
// - Wrap the PCS side as a single-agent environment with rescaled actions and normalized observations
// - Run a hand-written rule for a few steps to show how the pieces fit together
func main() {
	cfgPath := flag.String("config", "configs/energy_net.yaml", "Path to YAML config")
	n := flag.Int("n", 12, "Number of steps to simulate")
	isoBuy := flag.Float64("buy", 40, "Constant ISO buy price")
	isoSell := flag.Float64("sell", 30, "Constant ISO sell price")
	statsOut := flag.String("stats", "", "Optional path to write observation normalizer stats (JSON)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	cc, err := cfg.ToController()
	if err != nil {
		panic(err)
	}
	ctrl, err := controller.New(cc, nil)
	if err != nil {
		panic(err)
	}

	iso := strategy.Constant{Action: []float64{*isoBuy, *isoSell}}
	pcsEnv := env.NewPCSEnv(ctrl, iso, nil)
	rescaled, err := env.NewRescaleAction(pcsEnv)
	if err != nil {
		panic(err)
	}
	norm := env.NewNormalizer(pcsEnv.ObservationSpace().Dim(), 10)
	e := env.NewNormalizeObservation(rescaled, norm)

	seed := cfg.Environment.Seed
	obs, err := e.Reset(&seed)
	if err != nil {
		panic(err)
	}

	fmt.Printf("%-5s %-6s %-9s %-10s %-10s %-10s %-10s\n", "step", "clock", "action", "battery", "level", "reward", "norm_obs")
	total := 0.0
	for i := 0; i < *n; i++ {
		// Charge in the first half of the day, sell in the second. Observations are normalized,
		// so read the raw time of day from the controller instead.
		action := []float64{1}
		if ctrl.State().CurrentTime >= 0.5 {
			action[0] = -1
		}
		tr, err := e.Step(action)
		if err != nil {
			panic(err)
		}
		total += tr.Reward

		info := tr.Info
		level, battery := 0.0, 0.0
		if len(info.BatteryLevels) > 0 {
			level, battery = info.BatteryLevels[0], info.BatteryActions[0]
		}
		fmt.Printf("%-5d %-6s %-9.2f %-10.3f %-10.3f %-10.3f %.3v\n",
			info.Step, episode.Clock(info.Time), action[0], battery, level, tr.Reward, obs)
		obs = tr.Observation
		if tr.Done() {
			break
		}
	}
	fmt.Printf("\nTotal PCS reward: %.2f\n", total)

	if *statsOut != "" {
		if err := norm.SaveFile(*statsOut); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote normalizer stats to %s\n", *statsOut)
	}
}
