package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonstream/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		rt, err := setup(cmd, setupOpts{})
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			host, port, err := splitAddr(addr)
			if err != nil {
				return err
			}
			rt.Config.Server.Host, rt.Config.Server.Port = host, port
		}

		deps := server.Deps{
			Curriculum: rt.Curriculum,
			Grader:     rt.Grader,
			Log:        rt.Log,
		}
		if rt.Store != nil {
			deps.Events = rt.Store.EventRepo()
			deps.Checks = append(deps.Checks, server.Check{Name: "store", Fn: rt.Store.Ping})
		}
		if rt.Cache != nil {
			deps.Checks = append(deps.Checks, server.Check{Name: "cache", Fn: rt.Cache.HealthCheck})
		}

		return server.New(rt.Config, deps).Run(ctx, rt.Config.Server.Addr())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address host:port (overrides config)")
}

func splitAddr(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}
