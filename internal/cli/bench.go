package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/datoms/internal/changescope"
	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
	"github.com/roach88/datoms/internal/kernel"
	"github.com/roach88/datoms/internal/querycache"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Readers      int
	Transactions int
	Entities     int
}

// BenchResult summarizes a benchmark run.
type BenchResult struct {
	Readers      int     `json:"readers"`
	Transactions int     `json:"transactions"`
	Entities     int     `json:"entities"`
	DurationMS   int64   `json:"duration_ms"`
	TxPerSecond  float64 `json:"tx_per_second"`
	Reads        int64   `json:"reads"`
	Inconsistent int64   `json:"inconsistent_reads"`
	CacheHits    float64 `json:"cache_hits"`
	CacheMisses  float64 `json:"cache_misses"`
	Invalidated  float64 `json:"cache_invalidated"`
}

// benchSchema declares counters: a unique name and an integer value.
var benchSchema = compiler.SchemaSpec{
	Attributes: map[string]compiler.AttributeSpec{
		"counter/name":  {ID: 100, Required: true, Unique: true},
		"counter/value": {ID: 101, Indexed: true},
	},
	Types: map[string]compiler.TypeSpec{
		"Counter": {ID: 200, Attributes: []string{"counter/name", "counter/value"}},
	},
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent readers against a writer",
		Long: `Run one writer incrementing counters while readers repeatedly take
snapshots and sum them through the query cache.

Every read compares the cached sum with a direct scan of the same
snapshot; any difference is reported as an inconsistent read and fails
the command.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Readers, "readers", 4, "number of concurrent readers")
	cmd.Flags().IntVar(&opts.Transactions, "transactions", 1000, "number of write transactions")
	cmd.Flags().IntVar(&opts.Entities, "entities", 100, "number of counters")

	return cmd
}

func runBench(ctx context.Context, opts *BenchOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Readers < 0 || opts.Transactions < 0 || opts.Entities < 1 {
		return commandError(formatter, ErrCodeGeneric, "readers and transactions must be non-negative and entities positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := Bench(ctx, opts.Readers, opts.Transactions, opts.Entities, opts.log())
	if err != nil {
		return commandError(formatter, ErrCodeRunFailed, err.Error())
	}

	var exitErr error
	if result.Inconsistent > 0 {
		exitErr = NewExitError(ExitFailure, fmt.Sprintf("%d inconsistent read(s)", result.Inconsistent))
	}

	if formatter.JSON() {
		if exitErr != nil {
			if err := formatter.Failure("E_BENCH_INCONSISTENT", exitErr.Error(), result); err != nil {
				return err
			}
			return exitErr
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "transactions: %d in %dms (%.0f tx/s)\n", result.Transactions, result.DurationMS, result.TxPerSecond)
	fmt.Fprintf(w, "reads:        %d by %d reader(s), %d inconsistent\n", result.Reads, result.Readers, result.Inconsistent)
	fmt.Fprintf(w, "query cache:  %.0f hits, %.0f misses, %.0f invalidated\n", result.CacheHits, result.CacheMisses, result.Invalidated)
	return exitErr
}

// Bench runs the benchmark on a fresh kernel.
func Bench(ctx context.Context, readers, transactions, entities int, logger *slog.Logger) (*BenchResult, error) {
	schema, err := compiler.Build(benchSchema)
	if err != nil {
		return nil, err
	}
	value, _ := schema.Attribute("counter/value")
	name, _ := schema.Attribute("counter/name")
	counterType, _ := schema.Type("Counter")

	metrics := querycache.NewMetrics("datoms")
	reg := prometheus.NewRegistry()
	if err := querycache.RegisterMetrics(reg, metrics); err != nil {
		return nil, err
	}

	k, err := kernel.New(kernel.WithMetrics(metrics), kernel.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer k.Close()

	counters := make([]datom.EID, entities)
	_, err = k.Transact(ctx, func(s *changescope.ChangeScope) error {
		if err := schema.Install(s); err != nil {
			return err
		}
		for i := range counters {
			e, err := s.New(counterType.E,
				db.AttrValue{A: name, V: datom.String(fmt.Sprintf("counter-%d", i))},
				db.AttrValue{A: value, V: datom.Int(0)},
			)
			if err != nil {
				return err
			}
			counters[i] = e
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	sum := db.NewCachedQuery("bench/sum", func(q db.Q) (any, error) {
		return sumValues(q, value), nil
	})

	result := &BenchResult{Readers: readers, Transactions: transactions, Entities: entities}
	var reads, inconsistent atomic.Int64
	done := make(chan struct{})

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		for i := range transactions {
			e := counters[i%entities]
			_, err := k.Transact(ctx, func(s *changescope.ChangeScope) error {
				return s.Update(e, value, func(v datom.Value) (datom.Value, error) {
					n, _ := v.(datom.Int)
					return n + 1, nil
				})
			})
			if err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
		}
		return nil
	})
	for range readers {
		g.Go(func() error {
			var last int64
			for {
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				snap := k.DB()
				cached, err := db.Cached[int64](snap, sum)
				if err != nil {
					return err
				}
				// Snapshots only move forward and counters only grow.
				if cached != sumValues(snap, value) || cached < last {
					inconsistent.Add(1)
				}
				last = cached
				reads.Add(1)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	result.DurationMS = elapsed.Milliseconds()
	if elapsed > 0 {
		result.TxPerSecond = float64(transactions) / elapsed.Seconds()
	}
	result.Reads = reads.Load()
	result.Inconsistent = inconsistent.Load()

	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	for _, f := range families {
		if len(f.GetMetric()) == 0 {
			continue
		}
		v := f.GetMetric()[0].GetCounter().GetValue()
		switch f.GetName() {
		case "datoms_query_cache_hits_total":
			result.CacheHits = v
		case "datoms_query_cache_misses_total":
			result.CacheMisses = v
		case "datoms_query_cache_invalidated_total":
			result.Invalidated = v
		}
	}

	logger.Debug("bench finished",
		"transactions", transactions,
		"reads", result.Reads,
		"elapsed", elapsed,
	)
	return result, nil
}

func sumValues(q db.Q, a datom.Attribute) int64 {
	var total int64
	for _, d := range db.All(q, a) {
		if n, ok := d.V.(datom.Int); ok {
			total += int64(n)
		}
	}
	return total
}
