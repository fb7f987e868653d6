package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/datachat-cli/internal/logger"
	"github.com/KaramelBytes/datachat-cli/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		ad, err := newAdapter()
		if err != nil {
			return err
		}
		var df datasetFlags
		opt, err := df.options()
		if err != nil {
			return err
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		addr := c.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := server.New(server.Config{
			Adapter:     ad,
			Parse:       opt,
			MaxUpload:   c.MaxUploadBytes(),
			IdleTimeout: c.SessionIdle(),
			Logger:      logger.L,
		})
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server_addr)")
}
