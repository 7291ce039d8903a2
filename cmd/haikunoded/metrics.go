package main

import (
	"context"
	"net/http"
	"time"

	"github.com/haikuchain/haikunode/internal/node"
	"github.com/haikuchain/haikunode/internal/p2p"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	blockNumberGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "haikunode",
		Name:      "block_number",
		Help:      "Block number of the locally committed chain tip.",
	})
	difficultyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "haikunode",
		Name:      "difficulty",
		Help:      "Puzzle difficulty the next block must meet.",
	})
	peerCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "haikunode",
		Name:      "peer_count",
		Help:      "Number of currently connected P2P peers.",
	})
)

func init() {
	prometheus.MustRegister(blockNumberGauge, difficultyGauge, peerCountGauge)
}

// startMetricsServer serves Prometheus metrics on addr, refreshed from
// n and p2pNode every second. p2pNode may be nil when P2P is disabled.
func startMetricsServer(addr string, n *node.Node, p2pNode *p2p.Node, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				local := n.LocalTip()
				blockNumberGauge.Set(float64(local.BlockNumber))
				difficultyGauge.Set(float64(n.Difficulty()))
				if p2pNode != nil {
					peerCountGauge.Set(float64(p2pNode.PeerCount()))
				}
			}
		}
	}()

	return func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
