package main

import (
	"github.com/mrsinham/dicomgroup/internal/report"
	"github.com/mrsinham/dicomgroup/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd(a *app) *cobra.Command {
	var (
		imp  importFlags
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve DIR",
		Short: "Serve the groups of a directory over a read-only HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}
			res, err := a.importDir(cmd, args[0], imp)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			return server.New(report.FromImport(res), a.logger).Start(ctx, addr)
		},
	}
	imp.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}
