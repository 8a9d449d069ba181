package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tari-project/tari-core/config"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module/metrics"
)

var (
	flagCommitteeSize int
	flagHeight        uint32
	flagDuration      time.Duration
	flagAsset         string
	flagMetricsPort   uint
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a committee until it committed the requested number of nodes",
	RunE:  runCommittee,
}

func init() {
	runCmd.Flags().IntVarP(&flagCommitteeSize, "committee-size", "n", 4, "number of replicas in the committee")
	runCmd.Flags().Uint32Var(&flagHeight, "height", 10, "stop once every replica committed a node at this height")
	runCmd.Flags().DurationVar(&flagDuration, "duration", 5*time.Minute, "stop after this long even if the height was not reached")
	runCmd.Flags().StringVar(&flagAsset, "asset", "localnet", "name the asset key and genesis payload are derived from")
	runCmd.Flags().UintVar(&flagMetricsPort, "metrics-port", 0, "serve prometheus metrics on this port, disabled when 0")
}

type runParams struct {
	committeeSize int
	height        uint32
	duration      time.Duration
	asset         string
	metricsPort   uint
}

func runCommittee(cmd *cobra.Command, _ []string) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, log, conf, runParams{
		committeeSize: flagCommitteeSize,
		height:        flagHeight,
		duration:      flagDuration,
		asset:         flagAsset,
		metricsPort:   flagMetricsPort,
	}, cmd.OutOrStdout())
}

// errHeightReached stops the workers once the committee committed the
// requested height.
var errHeightReached = errors.New("height reached")

func run(ctx context.Context, log zerolog.Logger, conf *config.NodeConfig, params runParams, out io.Writer) error {
	registry := prometheus.NewRegistry()
	committee, err := newLocalCommittee(log, conf, committeeParams{
		size:     params.committeeSize,
		asset:    params.asset,
		registry: registry,
		decided: func(id mhotstuff.ReplicaID, view mhotstuff.ViewID) {
			log.Debug().Str("replica", string(id)).Uint64("view", uint64(view)).Msg("view decided")
		},
	})
	if err != nil {
		return fmt.Errorf("could not create committee: %w", err)
	}
	defer func() {
		err := committee.close()
		if err != nil {
			log.Error().Err(err).Msg("could not close databases")
		}
	}()

	if params.metricsPort != 0 {
		server := metrics.NewServer(log, params.metricsPort, registry)
		_, err := server.Start()
		if err != nil {
			return fmt.Errorf("could not start metrics server: %w", err)
		}
		defer func() {
			_ = server.Stop()
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, params.duration)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range committee.members {
		m := m
		g.Go(func() error {
			return m.worker.Run(ctx)
		})
	}
	g.Go(func() error {
		return watchHeight(ctx, log, committee, params.height)
	})

	log.Info().
		Int("committee_size", params.committeeSize).
		Str("asset", committee.asset.PublicKey.String()).
		Uint32("height", params.height).
		Msg("committee started")
	err = g.Wait()
	reached := errors.Is(err, errHeightReached)
	if err != nil && !reached {
		return err
	}

	height, ok := committee.committedHeight()
	if !ok {
		return fmt.Errorf("committee did not commit the genesis node within %s", params.duration)
	}
	err = printCommitted(out, committee, height)
	if err != nil {
		return err
	}
	if !reached {
		return fmt.Errorf("committee committed height %d of %d within %s", height, params.height, params.duration)
	}
	log.Info().
		Uint32("height", height).
		Uint64("messages_delivered", committee.hub.Delivered()).
		Uint64("messages_dropped", committee.hub.Dropped()).
		Msg("committee reached height")
	return nil
}

// watchHeight polls the committed height until target is reached.
func watchHeight(ctx context.Context, log zerolog.Logger, committee *localCommittee, target uint32) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var last uint32
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		height, ok := committee.committedHeight()
		if !ok {
			continue
		}
		if height > last {
			last = height
			log.Info().Uint32("height", height).Msg("committee committed")
		}
		if height >= target {
			return errHeightReached
		}
	}
}

// printCommitted writes the nodes committed by the first replica.
func printCommitted(out io.Writer, committee *localCommittee, height uint32) error {
	chain := committee.members[0].chain
	for h := uint32(0); h <= height; h++ {
		node, err := chain.CommittedNode(h)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%d\t%s\t%s\n", h, node.Hash(), node.Payload())
		if err != nil {
			return err
		}
	}
	return nil
}
