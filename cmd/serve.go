package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		svc, err := rt.newService(ctx)
		if err != nil {
			return err
		}

		if !viper.GetBool("debug") {
			gin.SetMode(gin.ReleaseMode)
		}
		srv, err := server.New(svc, rt.logger.Named("http"))
		if err != nil {
			return err
		}

		rt.logger.Info("starting the resume-ranker api", zap.String("version", buildVersion()))
		return srv.Run(ctx, rt.cfg.Server.Addr, rt.cfg.Server.ShutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
