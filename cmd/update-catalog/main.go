package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"energy-net/internal/data"
	"energy-net/internal/strategy"
)

func main() {
	var (
		outputPath  = flag.String("output", "", "Catalog file to update (default: $POLICY_CATALOG or ./data/policies.json)")
		seedFile    = flag.String("seed", "", "Path to another catalog whose entries are merged in")
		specFile    = flag.String("spec", "", "Path to a JSON policy spec to add")
		name        = flag.String("name", "", "Name for --spec")
		side        = flag.String("side", "iso", "Side for --spec: iso or pcs")
		description = flag.String("description", "", "Description for --spec")
	)
	flag.Parse()

	if *outputPath == "" {
		*outputPath = data.DefaultCatalogPath()
	}

	// Start from the existing catalog when there is one
	catalog, err := data.LoadCatalog(*outputPath)
	if err != nil {
		fmt.Printf("Starting a new catalog at %s (%v)\n", *outputPath, err)
		catalog = &data.Catalog{}
	} else {
		fmt.Printf("Loaded %d existing policies from %s\n", len(catalog.Policies), *outputPath)
	}

	if *seedFile != "" {
		seed, err := data.LoadCatalog(*seedFile)
		if err != nil {
			log.Fatalf("Failed to load seed catalog: %v", err)
		}
		catalog.Merge(seed.Policies...)
		fmt.Printf("Merged %d policies from %s\n", len(seed.Policies), *seedFile)
	}

	if *specFile != "" {
		entry, err := entryFromSpec(*specFile, *name, *side, *description)
		if err != nil {
			log.Fatalf("Failed to add policy: %v", err)
		}
		catalog.Merge(entry)
		fmt.Printf("Added %s policy %q\n", entry.Side, entry.Name)
	}

	catalog.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := data.SaveCatalog(catalog, *outputPath); err != nil {
		log.Fatalf("Failed to save catalog: %v", err)
	}

	bySide := catalog.BySide()
	fmt.Printf("Saved %d policies (%d iso, %d pcs) to %s\n",
		len(catalog.Policies), len(bySide[data.SideISO]), len(bySide[data.SidePCS]), *outputPath)
}

// entryFromSpec loads a spec and checks that it builds before it is cataloged.
func entryFromSpec(path, name, side, description string) (data.CatalogEntry, error) {
	if name == "" {
		return data.CatalogEntry{}, fmt.Errorf("--name is required with --spec")
	}
	s := data.Side(side)
	if s != data.SideISO && s != data.SidePCS {
		return data.CatalogEntry{}, fmt.Errorf("--side must be iso or pcs, got %q", side)
	}
	spec, err := data.LoadPolicySpec(path)
	if err != nil {
		return data.CatalogEntry{}, err
	}
	if spec.Kind == strategy.KindOracle {
		return data.CatalogEntry{}, fmt.Errorf("oracle policies depend on a price path and cannot be cataloged")
	}
	if _, err := strategy.FromSpec(spec, strategy.Env{}); err != nil {
		return data.CatalogEntry{}, err
	}
	return data.CatalogEntry{Name: name, Side: s, Description: description, Spec: spec}, nil
}
