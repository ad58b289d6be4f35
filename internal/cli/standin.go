package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"facedesk/internal/config"
	"facedesk/internal/standin"
)

var standinCmd = &cobra.Command{
	Use:   "standin",
	Short: "Serve an in-memory attendance backend for local development",
	Long: `Serves the backend REST API from memory so the kiosk can run without the
recognition service. Registered photos are matched by image fingerprint, so
the still camera driver pointed at a registered photo is recognised.

--operator creates a photo-less identity the kiosk can log in as.`,
	Args: cobra.NoArgs,
	RunE: runStandin,
}

func init() {
	rootCmd.AddCommand(standinCmd)
	standinCmd.Flags().String("addr", ":8000", "Listen address")
	standinCmd.Flags().String("operator", "", "Email of an operator identity to create at startup")
	standinCmd.Flags().String("key", "", "Session signing key (defaults to BACKEND_JWT_KEY)")
}

func runStandin(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	key := mustGetString(cmd, "key")
	if key == "" {
		key = cfg.BackendJWTKey
	}
	if key == "" {
		return fmt.Errorf("a session signing key is required: set --key or BACKEND_JWT_KEY")
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	store := standin.NewStore()
	if email := mustGetString(cmd, "operator"); email != "" {
		if _, err := store.CreateIdentity("Operator", "Front desk", email, nil); err != nil {
			return err
		}
	}

	log := logger()
	srv := &http.Server{
		Addr:              mustGetString(cmd, "addr"),
		Handler:           standin.New(store, key, nil, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "stand-in backend on %s/api\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
