// Command hivedemo runs a small Hive processing a batch of inputs, as
// a smoke test for the ambient and domain stack: GOMAXPROCS/GOMEMLIMIT
// correction for a container's cgroup limits, structured logging, and
// an optional TOML config file override.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/hive/bee"
	"github.com/joeycumines/hive/hive"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "optional path to a TOML config file")
	flag.Parse()

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	if err := hive.EnableAutoMaxProcs(&logger); err != nil {
		logger.Warn().Err(err).Msg("automaxprocs: failed to adjust GOMAXPROCS")
	}
	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		logger.Warn().Err(err).Msg("automemlimit: failed to set GOMEMLIMIT")
	}

	builder := hive.NewBuilder().Logger(&logger).MaxRetries(2).RetryFactor(10 * time.Millisecond)
	if *configPath != "" {
		fc, err := hive.LoadConfigFile(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config file")
		}
		if builder, err = fc.ApplyTo(builder); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply config file")
		}
	}

	queen := bee.QueenFunc[int, int](func() bee.Worker[int, int] {
		return bee.WorkerFunc[int, int](func(_ context.Context, input int, tctx *bee.Context) (int, error) {
			return input * input, nil
		})
	})

	h, err := hive.Build[int, int](builder, queen)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build hive")
	}
	defer h.Close()

	inputs := make([]int, 20)
	for i := range inputs {
		inputs[i] = i
	}

	for o := range h.Map(inputs) {
		v, err := o.Unwrap()
		if err != nil {
			fmt.Fprintf(os.Stderr, "task %d: %v\n", o.Index, err)
			continue
		}
		fmt.Printf("task %d -> %d\n", o.Index, v)
	}

	queued, active := h.NumTasks()
	logger.Info().Uint64("queued", queued).Uint64("active", active).Uint64("panics", h.NumPanics()).Msg("done")
}
