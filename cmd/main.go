package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"safedrive-monitor/internal/api"
	"safedrive-monitor/internal/classifier"
	"safedrive-monitor/internal/client"
	"safedrive-monitor/internal/db"
	"safedrive-monitor/internal/models"
	"safedrive-monitor/internal/parser"
	"safedrive-monitor/internal/sampler"
	"safedrive-monitor/internal/signs"
	"safedrive-monitor/internal/telemetry"
	"safedrive-monitor/internal/trip"
)

var (
	dbPath   string
	verbose  bool
	database *db.Database
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "safedrive",
		Short: "SafeDrive Monitor - sign-aware driving supervision and credit scoring",
		Long: `A driving-simulation cockpit backend: frames are streamed to a sign
classifier, classifications become time-bounded road restrictions, and live
vehicle telemetry is checked against them to build a per-trip violation
ledger and credit score.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "safedrive.db", "Path to SQLite database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(driveCmd())
	rootCmd.AddCommand(classifierCmd())
	rootCmd.AddCommand(signsCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initDB initializes database connection
func initDB() error {
	var err error
	database, err = db.New(dbPath)
	return err
}

// serveCmd starts the account and trip REST API server
func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account and trip API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			server := api.NewServer(database, slog.Default())
			addr := fmt.Sprintf(":%d", port)

			fmt.Printf("SafeDrive account API\n")
			fmt.Printf("   Listening on http://localhost%s\n", addr)
			fmt.Printf("   Database: %s\n\n", dbPath)
			fmt.Println("Available endpoints:")
			fmt.Println("  GET    /health")
			fmt.Println("  POST   /api/v1/auth/register")
			fmt.Println("  POST   /api/v1/auth/login")
			fmt.Println("  GET    /api/v1/users/{id}")
			fmt.Println("  POST   /api/v1/users/update")
			fmt.Println("  POST   /api/v1/vehicles")
			fmt.Println("  DELETE /api/v1/vehicles")
			fmt.Println("  POST   /api/v1/trips")
			fmt.Println("  GET    /api/v1/stats")
			fmt.Println()

			return http.ListenAndServe(addr, server.Router())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Server port")
	return cmd
}

// driveCmd replays a scripted trip against a live classifier
func driveCmd() *cobra.Command {
	var (
		userID       string
		plate        string
		classifierWS string
		accountBase  string
		framesDir    string
		scriptPath   string
		scriptFormat string
		duration     time.Duration
		grace        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Run one scripted trip through the cockpit engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			var steps []parser.DriveStep
			if scriptPath != "" {
				p := parser.NewParser(scriptFormat)
				var err error
				steps, err = p.ParseFile(scriptPath)
				if err != nil {
					return fmt.Errorf("drive script error: %w", err)
				}
				if errs := parser.ValidateSteps(steps); len(errs) > 0 {
					return fmt.Errorf("drive script invalid: %s", strings.Join(errs, "; "))
				}
			}

			var source sampler.FrameSource
			if framesDir != "" {
				var err error
				source, err = sampler.NewDirectorySource(framesDir)
				if err != nil {
					return err
				}
			} else {
				// A placeholder frame keeps the pipeline exercised with no
				// video material at hand.
				source = &sampler.StaticSource{Frame: []byte("frame")}
			}

			var submitter trip.Submitter
			if accountBase != "" {
				submitter = client.New(accountBase)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			channel := telemetry.NewChannel(classifierWS)
			session := trip.NewSession(trip.Config{
				UserID:      userID,
				Plate:       plate,
				Channel:     channel,
				Source:      source,
				Sender:      channel,
				Submitter:   submitter,
				GracePeriod: grace,
			})

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error { return channel.Run(gctx) })
			g.Go(func() error { return session.Run(gctx) })
			g.Go(func() error {
				playScript(gctx, session, steps)
				// Scripted trips end shortly after their last step; unscripted
				// trips run for the duration flag.
				tail := duration
				if len(steps) > 0 {
					tail = time.Second
				}
				select {
				case <-gctx.Done():
				case <-time.After(tail):
				}
				session.Stop()
				cancel()
				return nil
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			printLedger(session.Ledger())
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID for trip submission")
	cmd.Flags().StringVar(&plate, "plate", "", "Vehicle plate for trip submission")
	cmd.Flags().StringVarP(&classifierWS, "classifier", "c", "ws://localhost:8000/ws", "Classifier websocket endpoint")
	cmd.Flags().StringVarP(&accountBase, "account", "a", "", "Account API base URL, empty to skip submission")
	cmd.Flags().StringVar(&framesDir, "frames", "", "Directory of image frames to cycle as the video feed")
	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Drive script of timed speed/steering steps")
	cmd.Flags().StringVarP(&scriptFormat, "format", "f", "log", "Drive script format (csv, json, log)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 30*time.Second, "Trip duration when the script does not bound it")
	cmd.Flags().DurationVar(&grace, "grace", 0, "Optional grace period after a sign activates before violations are charged")
	return cmd
}

// playScript applies timed drive steps to the session until the script or
// the context runs out.
func playScript(ctx context.Context, session *trip.Session, steps []parser.DriveStep) {
	start := time.Now()
	for _, step := range steps {
		wait := time.Duration(step.At*float64(time.Second)) - time.Since(start)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
		session.UpdateVehicle(models.VehicleState{Speed: step.Speed, Steering: step.Steering})
	}
}

func printLedger(records []models.ViolationRecord) {
	fmt.Printf("\nTrip ledger (%d records)\n", len(records))
	fmt.Println("========================")
	for _, r := range records {
		fmt.Printf("  [%s] %-16s %+d  %s\n",
			r.Timestamp.Format("15:04:05"), r.Type, -r.ScoreDelta, r.Description)
	}
}

// classifierCmd runs the mock sign classifier websocket service
func classifierCmd() *cobra.Command {
	var port int
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "classifier",
		Short: "Start a mock sign classifier for local trips",
		RunE: func(cmd *cobra.Command, args []string) error {
			var detector classifier.Detector = classifier.DetectorFunc(
				func(models.TelemetrySample) *models.ClassificationEvent { return nil })

			if scriptPath != "" {
				steps, err := parser.ParseDetections(scriptPath)
				if err != nil {
					return fmt.Errorf("detection script error: %w", err)
				}
				detector = classifier.NewSequence(steps)
			}

			server := classifier.NewServer(detector, slog.Default())
			mux := http.NewServeMux()
			mux.Handle("/ws", server.Handler())

			addr := fmt.Sprintf(":%d", port)
			fmt.Printf("Mock classifier listening on ws://localhost%s/ws\n", addr)
			return http.ListenAndServe(addr, mux)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8000, "Server port")
	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Detection script: after_sample|class_id|confidence lines")
	return cmd
}

// signsCmd prints the traffic-sign lookup table
func signsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signs",
		Short: "List the traffic-sign classes and the restrictions they impose",
		RunE: func(cmd *cobra.Command, args []string) error {
			all := signs.All()
			ids := make([]string, 0, len(all))
			for id := range all {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return classIndex(ids[i]) < classIndex(ids[j]) })

			fmt.Printf("%-10s %-7s %-26s %s\n", "CLASS", "KIND", "LABEL", "ADVISORY")
			for _, id := range ids {
				d := all[id]
				fmt.Printf("%-10s %-7s %-26s %s\n", id, d.Kind, d.Label, d.Advisory)
			}
			return nil
		},
	}
}

func classIndex(id string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(id, "class_"))
	return n
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			stats, err := database.GetStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("SafeDrive Monitor Statistics")
			fmt.Println("============================")
			fmt.Printf("  Users:        %v\n", stats["total_users"])
			fmt.Printf("  Vehicles:     %v\n", stats["total_vehicles"])
			fmt.Printf("  Trips:        %v\n", stats["total_trips"])
			fmt.Printf("  Trip events:  %v\n", stats["total_trip_events"])
			fmt.Printf("  Database:     %s\n", dbPath)

			return nil
		},
	}
}
