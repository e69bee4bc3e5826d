package commands

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"farmdirect/db"
	"farmdirect/market"
	"farmdirect/middleware"
	"farmdirect/realtime"
	"farmdirect/routes"
)

var (
	port          string
	sweepInterval time.Duration
)

// serveCmd runs the HTTP API and the websocket change stream
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the marketplace API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port != "" {
			cfg.AppPort = port
		}
		if cfg.JWTSecret == "" {
			log.Println("Warning: JWT_SECRET is empty, every request will be rejected")
		}

		conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}

		hub := realtime.NewHub()
		svc := market.NewService(conn, market.WithPublisher(hub))
		app := NewApp(routes.NewHandler(svc, hub, cfg.JWTSecret), cfg.CORSAllowOrigins)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go sweepAuctions(ctx, svc, sweepInterval)

		go func() {
			<-ctx.Done()
			log.Println("Shutting down server")
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.Printf("Shutdown error: %v", err)
			}
		}()

		log.Printf("Server starting on %s", cfg.Addr())
		return app.Listen(cfg.Addr())
	},
}

// NewApp builds the Fiber application with the full middleware stack.
func NewApp(h *routes.Handler, allowOrigins []string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "FarmDirect",
		ErrorHandler: errorHandler,
	})
	middleware.SetupMiddleware(app, allowOrigins)
	routes.SetupRoutes(app, h)
	return app
}

// errorHandler renders errors that escape a handler. Wrapped fiber errors
// keep their status code.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// sweepAuctions closes expired auctions so subscribers get an update even
// when nobody bids or settles after the end time.
func sweepAuctions(ctx context.Context, svc *market.Service, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.CloseExpiredAuctions(ctx)
			if err != nil {
				log.Printf("auction sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("auction sweep: closed %d auctions", n)
			}
		}
	}
}

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 30*time.Second, "How often to close expired auctions (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
