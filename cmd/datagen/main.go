package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vouchwatch/backend/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		participants = flag.Int("participants", cfg.NumParticipants, "number of organic participants")
		endorsements = flag.Int("endorsements", cfg.NumEndorsements, "number of organic endorsements")
		rings        = flag.Int("rings", cfg.PlantedRings, "number of planted vouch rings")
		ringSize     = flag.Int("ring-size", cfg.RingSize, "members per planted ring")
		cliques      = flag.Int("cliques", cfg.PlantedCliques, "number of planted insular cliques")
		cliqueSize   = flag.Int("clique-size", cfg.CliqueSize, "members per planted clique")
		bursts       = flag.Int("bursts", cfg.BurstTargets, "number of planted burst targets")
		farming      = flag.Int("farming", cfg.FarmingTargets, "number of planted farming targets")
		seed         = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir    = flag.String("output-dir", "data", "directory to write endorsements.json")
		writeStdout  = flag.Bool("stdout", false, "write dataset to stdout instead of a file")
	)
	flag.Parse()

	cfg.NumParticipants = *participants
	cfg.NumEndorsements = *endorsements
	cfg.PlantedRings = *rings
	cfg.RingSize = *ringSize
	cfg.PlantedCliques = *cliques
	cfg.CliqueSize = *cliqueSize
	cfg.BurstTargets = *bursts
	cfg.FarmingTargets = *farming
	cfg.Seed = *seed

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(cfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d endorsements (%d ring members, %d clique members, %d burst targets, %d farming targets) into %s\n",
		len(dataset.Endorsements), len(dataset.RingMembers), len(dataset.CliqueMembers), len(dataset.BurstTargets), len(dataset.FarmingTargets), *outputDir)
}
