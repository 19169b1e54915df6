// Package massbalance calibrates the coefficients of an expensive black-box
// scoring function against human-supplied target values.
//
// # Quick Start
//
//	data, err := dataset.Load("scores.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	aim, speed := 26.25, 1400.0
//	pa, _ := params.Bind("aimMultiplier", &aim)
//	ps, _ := params.Bind("speedMultiplier", &speed)
//	set, _ := params.NewSet(pa, ps)
//
//	eng, err := massbalance.New(set, data, evaluator, massbalance.WithEpochs(20))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := eng.Run(ctx)
//
// # Search
//
// Each epoch visits every coefficient in insertion order. The coefficient is
// divided by the step multiplier and the dataset re-evaluated, then moved to
// step times its original value and re-evaluated again. The engine keeps the
// value, commits the decrease or commits the increase based on the population
// standard deviation of (computed - target) of the two probes.
//
// After every pass, probes included, a global scale is multiplied by
// mean(target) / mean(computed). The scale is never reset, so it depends on
// the whole history of the search.
//
// # Concurrency
//
// Every pass except the final one evaluates samples on a bounded worker pool
// (WithPoolSize, default: physical core count). The final pass is sequential
// so reports keep dataset order. Evaluator implementations must be safe for
// concurrent use.
package massbalance
