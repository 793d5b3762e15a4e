package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"

	_ "github.com/notargets/MatFree/backend/occa"
	"github.com/notargets/MatFree/ceed"
	"github.com/notargets/MatFree/config"
	"github.com/notargets/MatFree/logging"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (defaults are used when empty)")
	resource := flag.String("resource", "", "backend resource, overrides the config")
	problem := flag.String("problem", "mass", "problem to run: mass | poisson")
	meshFile := flag.String("mesh", "", "mesh file; reports vertex valence instead of running a problem")
	listBackends := flag.Bool("backends", false, "list registered backends and exit")
	flag.Parse()

	if *listBackends {
		for _, name := range ceed.Backends() {
			fmt.Println(name)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	logging.Install(cfg.LoggingConfig())

	if err := run(cfg, *resource, *problem, *meshFile); err != nil {
		log.Fatal().Err(err).Msg("mfapply failed")
	}
}

func run(cfg config.Config, resource, problem, meshFile string) (err error) {
	c, err := ceed.Init(resource, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, c.Close()) }()

	if meshFile != "" {
		return runValence(c, meshFile)
	}
	switch problem {
	case "mass":
		return runMass(c)
	case "poisson":
		return runPoisson(c)
	}
	return fmt.Errorf("unknown problem %q", problem)
}

func runMass(c *ceed.Ceed) error {
	p := c.Config.Problem
	lp, err := newLineProblem(c, p.Elements, p.P, p.Q, "Mass1DBuild", "MassApply")
	if err != nil {
		return err
	}
	defer lp.Destroy()

	vals, err := lp.Apply(func(float64) float64 { return 1 })
	if err != nil {
		return err
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	fmt.Printf("elements=%d P=%d Q=%d resource=%s\n", p.Elements, p.P, p.Q, c.Resource)
	fmt.Printf("integral of 1 over [0,1]: %.15f (error %.3e)\n", sum, math.Abs(sum-1))
	return nil
}

func runPoisson(c *ceed.Ceed) error {
	p := c.Config.Problem
	lp, err := newLineProblem(c, p.Elements, p.P, p.Q, "Poisson1DBuild", "Poisson1DApply")
	if err != nil {
		return err
	}
	defer lp.Destroy()

	vals, err := lp.Apply(func(x float64) float64 { return x })
	if err != nil {
		return err
	}
	interior := 0.0
	for _, v := range vals[1 : len(vals)-1] {
		interior = math.Max(interior, math.Abs(v))
	}
	fmt.Printf("elements=%d P=%d Q=%d resource=%s\n", p.Elements, p.P, p.Q, c.Resource)
	fmt.Printf("K x: left %.15f right %.15f interior max %.3e\n", vals[0], vals[len(vals)-1], interior)
	return nil
}
