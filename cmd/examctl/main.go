// Command examctl runs operational tasks against the exam service store:
// expiry sweeps, recalculation, results export and local token minting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/app"
	"github.com/SAP-F-2025/exam-service/internal/auth"
	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
)

const usage = `usage: examctl <command> [flags]

commands:
  sweep        finalise in-progress attempts past their deadline
  recalculate  rescore a finished attempt
  export       write exam results to a file
  token        sign a bearer token for local testing`

// operator is the identity used for administrative commands.
var operator = models.Actor{UserID: "examctl", Name: "examctl", Role: models.RoleAdmin}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command, args := os.Args[1], os.Args[2:]
	if command == "token" {
		if err := runToken(cfg, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	switch command {
	case "sweep":
		err = runSweep(ctx, application, args)
	case "recalculate":
		err = runRecalculate(ctx, application, args)
	case "export":
		err = runExport(ctx, application, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		app.Exit(application.Logger, "examctl "+command+" failed", err)
	}
}

func runSweep(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	batch := fs.Int("batch", a.Config.Sweep.BatchSize, "maximum attempts to finalise")
	fs.Parse(args)

	result, err := a.Services.Attempt().SweepExpired(ctx, time.Now(), *batch)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runRecalculate(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("recalculate", flag.ExitOnError)
	attemptID := fs.Uint("attempt", 0, "attempt id")
	apply := fs.Bool("apply-teacher-marks", false, "fold teacher marks into the score")
	fs.Parse(args)

	if *attemptID == 0 {
		return fmt.Errorf("-attempt is required")
	}
	result, err := a.Services.Grading().Recalculate(ctx, operator, *attemptID, *apply)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runExport(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	examID := fs.Uint("exam", 0, "exam id")
	format := fs.String("format", string(services.ExportExcel), "xlsx or csv")
	out := fs.String("out", "", "output file (default exam_<id>_results.<format>)")
	fs.Parse(args)

	if *examID == 0 {
		return fmt.Errorf("-exam is required")
	}
	data, err := a.Services.Export().ExportExamResults(ctx, operator, *examID, services.ExportFormat(*format))
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("exam_%d_results.%s", *examID, *format)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Println(path)
	return nil
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "user id")
	role := fs.String("role", string(models.RoleStudent), "admin, teacher or student")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}
	token, err := auth.NewJWTProvider(cfg.JWTSecret).SignToken(models.Actor{
		UserID: *userID,
		Role:   models.ParseRole(*role),
	}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
