package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"energy-net/internal/analysis"
	"energy-net/internal/config"
	"energy-net/internal/controller"
	"energy-net/internal/data"
	"energy-net/internal/episode"
	"energy-net/internal/logging"
	"energy-net/internal/strategy"

	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "simulate":
		cmdSimulate(os.Args[2:])
	case "compare":
		cmdCompare(os.Args[2:])
	case "rank":
		cmdRank(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli simulate --config configs/energy_net.yaml --iso flat-40-30 --pcs charge-max --out results/ledger.csv")
	fmt.Println("  cli compare --config configs/energy_net.yaml --iso flat-40-30,linear-demand --pcs oracle.json")
	fmt.Println("  cli rank --prices prices.json")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - --iso/--pcs take a catalog policy name or a path to a JSON policy spec")
	fmt.Println("  - simulate writes one CSV row per step with action=CHARGING/IDLE/DISCHARGING")
	fmt.Println("  - rank computes an arbitrage potential oracle score per named price series")
}

type runner struct {
	cfg     *config.Config
	catalog *data.Catalog
	engine  *episode.Engine
	log     logrus.FieldLogger
}

func newRunner(cfgPath, level string) *runner {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fail(err)
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fail(err)
	}
	catalog, err := data.LoadCatalog(data.DefaultCatalogPath())
	if err != nil {
		log.WithError(err).Debug("no policy catalog")
		catalog = &data.Catalog{}
	}
	return &runner{cfg: cfg, catalog: catalog, engine: episode.New(log), log: log}
}

func (r *runner) controller() *controller.Controller {
	cc, err := r.cfg.ToController()
	if err != nil {
		fail(err)
	}
	ctrl, err := controller.New(cc, r.log)
	if err != nil {
		fail(err)
	}
	units, err := r.cfg.UnitPolicies()
	if err != nil {
		fail(err)
	}
	for idx, p := range units {
		ctrl.PCS().SetTrainedAgent(idx, p)
	}
	return ctrl
}

func (r *runner) spec(ref string, side data.Side) strategy.Spec {
	if strings.HasSuffix(ref, ".json") {
		spec, err := data.LoadPolicySpec(ref)
		if err != nil {
			fail(err)
		}
		return spec
	}
	e, ok := r.catalog.Find(ref)
	if !ok || e.Side != side {
		fail(fmt.Errorf("no %s policy named %q", side, ref))
	}
	return e.Spec
}

// policies builds both sides. An oracle PCS is planned on the ISO's prices from a dry run.
func (r *runner) policies(ctx context.Context, isoRef, pcsRef string, seed uint64) (iso, pcs strategy.Policy) {
	cc, err := r.cfg.ToController()
	if err != nil {
		fail(err)
	}
	env := strategy.Env{Battery: cc.PCS.Units[0].Battery, Horizon: cc.Time.MaxSteps}
	if iso, err = strategy.FromSpec(r.spec(isoRef, data.SideISO), env); err != nil {
		fail(err)
	}
	if pcsRef == "" {
		return iso, nil
	}
	spec := r.spec(pcsRef, data.SidePCS)
	if strategy.Kind(strings.ToLower(string(spec.Kind))) == strategy.KindOracle {
		s := seed
		dry, err := r.engine.Run(ctx, r.controller(), iso, nil, &s, nil)
		if err != nil {
			fail(err)
		}
		env.Prices = episode.PricePath(dry.Ledger)
	}
	if pcs, err = strategy.FromSpec(spec, env); err != nil {
		fail(err)
	}
	return iso, pcs
}

func cmdSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/energy_net.yaml", "Path to YAML config")
	isoRef := fs.String("iso", "flat-40-30", "ISO policy: catalog name or JSON spec path")
	pcsRef := fs.String("pcs", "", "PCS policy for unit 0 (default: the unit's own policy, else charge at max rate)")
	seed := fs.Uint64("seed", 0, "Seed (0 = config seed)")
	steps := fs.Int("steps", 0, "Optional: override max steps per episode")
	outPath := fs.String("out", "results/ledger.csv", "Output CSV path")
	level := fs.String("log-level", "", "Override the configured log level")
	_ = fs.Parse(args)

	r := newRunner(*cfgPath, *level)
	if *steps > 0 {
		r.cfg.Environment.Time.MaxStepsPerEpisode = *steps
	}
	s := *seed
	if s == 0 {
		s = r.cfg.Environment.Seed
	}

	ctx := context.Background()
	iso, pcs := r.policies(ctx, *isoRef, *pcsRef, s)
	res, err := r.engine.Run(ctx, r.controller(), iso, pcs, &s, nil)
	if err != nil {
		fail(err)
	}

	// ensure output dir exists
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fail(err)
	}
	if err := episode.WriteLedgerCSV(*outPath, res.Ledger); err != nil {
		fail(err)
	}

	fmt.Printf("Wrote %d rows to %s\n", len(res.Ledger), *outPath)
	fmt.Printf("ISO reward=%.2f PCS reward=%.2f bought=%.2f sold=%.2f final level=%.3f\n",
		res.TotalISOReward, res.TotalPCSReward, res.EnergyBought, res.EnergySold, res.FinalLevel)
	fmt.Printf("shortfall steps=%d total shortfall=%.2f avg buy price=%.2f\n",
		res.ISO.ShortfallSteps, res.ISO.TotalShortfall, res.Prices.Mean)
}

func cmdCompare(args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/energy_net.yaml", "Path to YAML config")
	isoRefs := fs.String("iso", "flat-40-30,linear-demand", "Comma-separated ISO policies")
	pcsRefs := fs.String("pcs", "", "Comma-separated PCS policies (empty = unit defaults)")
	objective := fs.String("objective", string(episode.ObjectivePCS), "pcs_reward or iso_reward")
	seed := fs.Uint64("seed", 0, "Seed (0 = config seed)")
	level := fs.String("log-level", "warn", "Override the configured log level")
	_ = fs.Parse(args)

	r := newRunner(*cfgPath, *level)
	s := *seed
	if s == 0 {
		s = r.cfg.Environment.Seed
	}
	cc, err := r.cfg.ToController()
	if err != nil {
		fail(err)
	}
	units, err := r.cfg.UnitPolicies()
	if err != nil {
		fail(err)
	}

	ctx := context.Background()
	pcsList := splitList(*pcsRefs)
	if len(pcsList) == 0 {
		pcsList = []string{""}
	}
	var variations []episode.Variation
	for _, isoRef := range splitList(*isoRefs) {
		for _, pcsRef := range pcsList {
			iso, pcs := r.policies(ctx, isoRef, pcsRef, s)
			name := isoRef
			if pcsRef != "" {
				name += " / " + pcsRef
			}
			variations = append(variations, episode.Variation{Name: name, Config: cc, ISO: iso, PCS: pcs, UnitPolicies: units})
		}
	}

	ranked, err := r.engine.Compare(ctx, variations, s, episode.Objective(*objective))
	if err != nil {
		fail(err)
	}
	fmt.Printf("%-4s %-40s %-12s %-12s %-10s\n", "rank", "variation", "iso", "pcs", "shortfall")
	for _, v := range ranked {
		fmt.Printf("%-4d %-40s %-12.2f %-12.2f %-10.2f\n",
			v.Rank, v.Result.Name, v.Result.TotalISOReward, v.Result.TotalPCSReward, v.Result.ISO.TotalShortfall)
	}
}

func cmdRank(args []string) {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	pricePaths := fs.String("prices", "prices.json", "Comma-separated price series JSON paths or a directory")
	_ = fs.Parse(args)

	byName := map[string][]strategy.PricePoint{}
	for _, p := range splitList(*pricePaths) {
		info, err := os.Stat(p)
		if err != nil {
			fail(err)
		}
		files := []string{p}
		if info.IsDir() {
			files = nil
			entries, err := os.ReadDir(p)
			if err != nil {
				fail(err)
			}
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
					files = append(files, filepath.Join(p, e.Name()))
				}
			}
		}
		for _, f := range files {
			series, err := data.LoadPriceSeries(f)
			if err != nil {
				fail(err)
			}
			for name, prices := range data.GroupByName(series) {
				byName[name] = append(byName[name], prices...)
			}
		}
	}

	ranked := analysis.RankByOracleProfit(byName)
	fmt.Printf("%-4s %-24s %-8s %-10s %-13s %-12s\n", "rank", "series", "count", "p95-p05", "min/max", "oracle")
	for _, r := range ranked {
		fmt.Printf(
			"%-4d %-24s %-8d %-10.2f %-5.1f/%-7.1f %-12.2f\n",
			r.Rank,
			r.Name,
			r.Count,
			r.SpreadP95P05,
			r.Buy.Min,
			r.Buy.Max,
			r.OracleProfit,
		)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
