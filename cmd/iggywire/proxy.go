package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/iggywire/internal/auth"
	"github.com/danmuck/iggywire/internal/config"
	"github.com/danmuck/iggywire/internal/observability"
	"github.com/danmuck/iggywire/internal/report"
	"github.com/danmuck/iggywire/internal/tap"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run a decoding TCP tap between Iggy clients and a server",
	Long: `Run a transparent TCP proxy. Clients connect to --listen, every connection is
forwarded to --upstream unchanged and both directions are decoded live. The
format of the environment variables is IGGYWIRE_<flag> (e.g. IGGYWIRE_UPSTREAM).`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

func init() {
	def := config.Default().Proxy
	key := "name"
	proxyCmd.Flags().String(key, def.Name, wrapString("node name used for session ids and metric labels"))
	key = "listen"
	proxyCmd.Flags().String(key, def.Listen, wrapString("address clients connect to"))
	key = "upstream"
	proxyCmd.Flags().String(key, def.Upstream, wrapString("address of the Iggy server"))
	key = "metrics-addr"
	proxyCmd.Flags().String(key, def.MetricsAddr, wrapString("address of the metrics and status server; empty disables it"))
	key = "dial-timeout"
	proxyCmd.Flags().String(key, def.DialTimeout, wrapString("upstream dial timeout"))
	key = "status-token"
	proxyCmd.Flags().String(key, "", wrapString("bearer token required on the /sessions endpoint"))
	addOutputFlags(proxyCmd)
	addDecodeFlags(proxyCmd)
}

func runProxy(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	timeout, err := cfg.Proxy.Timeout()
	if err != nil {
		return err
	}
	w, err := report.NewWriter(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.Fields)
	if err != nil {
		return err
	}

	tp, err := tap.New(tap.Config{
		Name:        cfg.Proxy.Name,
		Listen:      cfg.Proxy.Listen,
		Upstream:    cfg.Proxy.Upstream,
		DialTimeout: timeout,
		Session:     cfg.Decode.Session(),
	}, tap.WithSink(w), tap.WithMetrics(cfg.Proxy.Name))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := tp.Serve(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if addr := strings.TrimSpace(cfg.Proxy.MetricsAddr); addr != "" {
		gin.SetMode(gin.ReleaseMode)
		var guard auth.Validator
		if cfg.Proxy.StatusToken != "" {
			guard = auth.StaticToken{Token: cfg.Proxy.StatusToken}
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           observability.NewRouter(cfg.Proxy.Name, cfg.Proxy.CorsOrigins, tp, guard),
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Go(func() error {
			log.Info().Str("addr", addr).Msg("iggywire proxy metrics server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		})
	}
	return group.Wait()
}
