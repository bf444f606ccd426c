// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/config"
	"github.com/arwahdevops/sxmlsync/internal/logger"
	"github.com/arwahdevops/sxmlsync/internal/metrics"
	"github.com/arwahdevops/sxmlsync/internal/reconcile"
	"github.com/arwahdevops/sxmlsync/internal/run"
	"github.com/arwahdevops/sxmlsync/internal/secrets"
	"github.com/arwahdevops/sxmlsync/internal/server"
	"github.com/arwahdevops/sxmlsync/internal/startwith"
	"github.com/arwahdevops/sxmlsync/internal/sxml"
	"github.com/arwahdevops/sxmlsync/internal/vcs"
)

var (
	scanDirOverride            string
	workersOverride            int
	markerPrefixOverride       string
	normalizeStartWithOverride bool
	dryRunOverride             bool
)

func main() {
	flag.StringVar(&scanDirOverride, "scan-dir", "", "Override SCAN_DIR (directory to scan for snapshot files)")
	flag.IntVar(&workersOverride, "workers", 0, "Override WORKERS (must be > 0)")
	flag.StringVar(&markerPrefixOverride, "marker-prefix", "", "Override MARKER_PREFIX")
	flag.BoolVar(&normalizeStartWithOverride, "normalize-start-with", false, "Enable NORMALIZE_START_WITH")
	flag.BoolVar(&dryRunOverride, "dry-run", false, "Enable DRY_RUN (reconcile and report, write nothing)")
	flag.Parse()

	// 1. Load environment variables (.env overrides)
	if err := godotenv.Overload(".env"); err != nil {
		stdlog.Printf("Warning: Could not load .env file: %v. Relying on environment variables.\n", err)
	}

	// 2. Initial config loading to get logger settings
	preCfg := &struct {
		EnableJsonLogging bool `env:"ENABLE_JSON_LOGGING" envDefault:"false"`
		DebugMode         bool `env:"DEBUG_MODE" envDefault:"false"`
	}{}
	if err := env.Parse(preCfg); err != nil {
		stdlog.Fatalf("Failed to parse pre-configuration for logger: %v", err)
	}

	// 3. Initialize Zap logger
	if err := logger.Init(preCfg.DebugMode, preCfg.EnableJsonLogging); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	// 4. Load and validate full configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("Configuration loading error from environment", zap.Error(err))
	}

	applyCliOverrides(cfg)

	if cfg.ScanDir == "" {
		logger.Log.Fatal("No scan directory configured. Set SCAN_DIR or pass -scan-dir.")
	}
	if info, err := os.Stat(cfg.ScanDir); err != nil || !info.IsDir() {
		logger.Log.Fatal("Scan directory does not exist or is not a directory", zap.String("scan_dir", cfg.ScanDir), zap.Error(err))
	}

	logLoadedConfig(cfg)

	// 5. Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 6. Initialize Metrics Store
	metricsStore := metrics.NewMetricsStore()

	// 7. Initialize Secret Managers
	vaultMgr, vaultErr := secrets.NewVaultManager(cfg, logger.Log)
	if vaultErr != nil {
		if cfg.VaultEnabled {
			logger.Log.Fatal("Failed to initialize Vault secret manager", zap.Error(vaultErr))
		} else {
			logger.Log.Warn("Could not initialize Vault secret manager (Vault not enabled or config error)", zap.Error(vaultErr))
		}
	}
	availableSecretManagers := make([]secrets.SecretManager, 0)
	if vaultMgr != nil && vaultMgr.IsEnabled() {
		availableSecretManagers = append(availableSecretManagers, vaultMgr)
	}

	// 8. Optional START_WITH lookup database
	var lookupDB *startwith.DBProvider
	var provider startwith.Provider = startwith.Static{}
	if cfg.StartWithDB.Dialect != "" {
		creds, credsErr := loadLookupCredentials(ctx, cfg, availableSecretManagers)
		if credsErr != nil {
			logger.Log.Fatal("Failed to load START_WITH lookup DB credentials", zap.Error(credsErr))
		}
		lookupDB, err = startwith.Open(cfg.StartWithDB, creds.Username, creds.Password, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to open START_WITH lookup DB", zap.Error(err))
		}
		defer func() {
			if err := lookupDB.Close(); err != nil {
				logger.Log.Error("Error closing START_WITH lookup DB", zap.Error(err))
			}
		}()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr := lookupDB.Ping(pingCtx)
		pingCancel()
		if pingErr != nil {
			logger.Log.Fatal("START_WITH lookup DB is not reachable", zap.Error(pingErr))
		}
		provider = lookupDB
		logger.Log.Info("START_WITH lookup DB connected", zap.String("dialect", cfg.StartWithDB.Dialect))
	}

	// 9. Start HTTP Server
	go server.RunHTTPServer(ctx, cfg, metricsStore, lookupDB, logger.Log)

	// 10. Build the reconciliation pipeline
	repairer := sxml.NewRepairer(provider, cfg.Generator, logger.Log)
	engine := reconcile.New(repairer, reconcile.Options{NormalizeStartWith: cfg.NormalizeStartWith}, logger.Log)

	var gitCmp *vcs.GitComparator
	if cfg.EnableVCSDiff {
		gitCmp = vcs.NewGitComparator(cfg.ScanDir, cfg.VCSMaxRetries, cfg.VCSRetryInterval, logger.Log)
	}

	// 11. Run the reconciliation pass
	logger.Log.Info("Starting snapshot reconciliation run...")
	orchestrator := run.NewOrchestrator(cfg, engine, gitCmp, metricsStore, logger.Log)
	results := orchestrator.Run(ctx)

	// 12. Process and log results
	logger.Log.Info("Reconciliation run finished. Processing results...")
	exitCode := processResults(results)

	stop()
	logger.Log.Info("Exiting.", zap.Int("exit_code", exitCode))
	_ = logger.Log.Sync()
	os.Exit(exitCode)
}

// applyCliOverrides applies CLI flag values on top of the env-derived config.
func applyCliOverrides(cfg *config.Config) {
	if scanDirOverride != "" {
		logger.Log.Info("Overriding SCAN_DIR with CLI flag", zap.String("env_value", cfg.ScanDir), zap.String("cli_value", scanDirOverride))
		cfg.ScanDir = scanDirOverride
	}
	if workersOverride > 0 {
		logger.Log.Info("Overriding WORKERS with CLI flag", zap.Int("env_value", cfg.Workers), zap.Int("cli_value", workersOverride))
		cfg.Workers = workersOverride
	}
	if markerPrefixOverride != "" {
		logger.Log.Info("Overriding MARKER_PREFIX with CLI flag", zap.String("env_value", cfg.MarkerPrefix), zap.String("cli_value", markerPrefixOverride))
		cfg.MarkerPrefix = markerPrefixOverride
	}
	if normalizeStartWithOverride {
		logger.Log.Info("Enabling NORMALIZE_START_WITH via CLI flag")
		cfg.NormalizeStartWith = true
	}
	if dryRunOverride {
		logger.Log.Info("Enabling DRY_RUN via CLI flag")
		cfg.DryRun = true
	}
}

// logLoadedConfig logs the final configuration in use.
func logLoadedConfig(cfg *config.Config) {
	lookupPassSource := "not set"
	if cfg.StartWithDB.Password != "" {
		lookupPassSource = "env var"
	} else if cfg.VaultEnabled && cfg.StartWithSecretPath != "" {
		lookupPassSource = "vault"
	}

	logger.Log.Info("Final configuration in use",
		zap.String("scan_dir", cfg.ScanDir),
		zap.Int("workers", cfg.Workers),
		zap.Duration("file_timeout", cfg.FileTimeout),
		zap.String("marker_prefix", cfg.MarkerPrefix),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Bool("normalize_start_with", cfg.NormalizeStartWith),
		zap.Bool("clean_stale_reports", cfg.CleanStaleReports),
		zap.Bool("enable_vcs_diff", cfg.EnableVCSDiff), zap.Int("vcs_max_retries", cfg.VCSMaxRetries), zap.Duration("vcs_retry_interval", cfg.VCSRetryInterval),
		zap.String("lookup_dialect", cfg.StartWithDB.Dialect), zap.String("lookup_host", cfg.StartWithDB.Host), zap.Int("lookup_port", cfg.StartWithDB.Port), zap.String("lookup_user", cfg.StartWithDB.User), zap.String("lookup_password_source", lookupPassSource), zap.String("lookup_dbname", cfg.StartWithDB.DBName),
		zap.Bool("json_logging", cfg.EnableJsonLogging), zap.Bool("enable_pprof", cfg.EnablePprof), zap.Int("metrics_port", cfg.MetricsPort), zap.Bool("debug_mode", cfg.DebugMode),
		zap.Bool("vault_enabled", cfg.VaultEnabled), zap.String("vault_addr", cfg.VaultAddr), zap.Bool("vault_token_present", cfg.VaultToken != ""),
		zap.String("startwith_secret_path", cfg.StartWithSecretPath),
	)
}

// loadLookupCredentials loads lookup DB credentials from env vars or a secret manager.
func loadLookupCredentials(ctx context.Context, cfg *config.Config, secretManagers []secrets.SecretManager) (*secrets.Credentials, error) {
	log := logger.Log.With(zap.String("db", "startwith-lookup"))

	if cfg.StartWithDB.Password != "" {
		log.Info("Using password directly from environment variable for lookup DB.")
		if cfg.StartWithDB.User == "" {
			return nil, fmt.Errorf("password provided via env var, but STARTWITH_DB_USER is missing")
		}
		return &secrets.Credentials{Username: cfg.StartWithDB.User, Password: cfg.StartWithDB.Password}, nil
	}
	log.Info("Password not found in direct environment variable. Checking secret managers...")

	if cfg.StartWithSecretPath != "" {
		if len(secretManagers) == 0 {
			log.Warn("Secret path is configured, but no secret managers are active/enabled.")
		}
		for _, sm := range secretManagers {
			log.Info("Attempting to retrieve credentials from configured secret manager",
				zap.String("manager_type", fmt.Sprintf("%T", sm)),
				zap.String("path_or_id", cfg.StartWithSecretPath),
			)
			getCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			creds, err := sm.GetCredentials(getCtx, cfg.StartWithSecretPath, cfg.StartWithUsernameKey, cfg.StartWithPasswordKey)
			cancel()

			if err == nil && creds != nil {
				if creds.Password == "" {
					return nil, fmt.Errorf("retrieved credentials from %T, but password field is empty", sm)
				}
				if creds.Username == "" {
					log.Warn("Username field empty in retrieved secret. Falling back to STARTWITH_DB_USER.",
						zap.String("db_config_user", cfg.StartWithDB.User))
					creds.Username = cfg.StartWithDB.User
					if creds.Username == "" {
						return nil, fmt.Errorf("password retrieved, but username is missing in both secret and STARTWITH_DB_USER")
					}
				}
				log.Info("Successfully retrieved credentials from secret manager.")
				return creds, nil
			}
			log.Warn("Failed to retrieve credentials from secret manager. Trying next if available.",
				zap.String("manager_type", fmt.Sprintf("%T", sm)),
				zap.Error(err),
			)
		}
		log.Error("Failed to retrieve credentials from all configured/enabled secret managers.", zap.String("path_or_id", cfg.StartWithSecretPath))
	} else {
		log.Info("Secret path is not configured. Cannot use secret managers.")
	}

	return nil, fmt.Errorf("could not load lookup DB credentials. Ensure STARTWITH_DB_PASSWORD or Vault (VAULT_ENABLED=true and STARTWITH_SECRET_PATH) is configured correctly")
}

// processResults summarizes per-file outcomes and determines the exit code.
func processResults(results map[string]run.FileResult) (exitCode int) {
	cleanCount := 0
	fixedCount := 0
	discrepancyCount := 0
	failCount := 0
	skippedCount := 0
	totalFiles := len(results)

	if totalFiles == 0 {
		logger.Log.Warn("Run finished, but no snapshot files were found under the scan directory.")
		return 0
	}

	var failedFiles []string
	var discrepancyFiles []string

	for path, res := range results {
		fields := []zap.Field{
			zap.String("file", path),
			zap.Duration("duration", res.Duration),
			zap.Int("fixes", res.FixCount),
			zap.Bool("repaired", res.Repaired),
			zap.Bool("residual_discrepancies", res.HasResidual),
		}
		if res.ReadError != nil {
			fields = append(fields, zap.NamedError("read_error", res.ReadError))
		}
		if res.MarkerError != nil {
			fields = append(fields, zap.NamedError("marker_error", res.MarkerError))
		}
		if res.ReconcileError != nil {
			fields = append(fields, zap.NamedError("reconcile_error", res.ReconcileError))
		}
		if res.WriteError != nil {
			fields = append(fields, zap.NamedError("write_error", res.WriteError))
		}
		if res.ReportError != nil {
			fields = append(fields, zap.NamedError("report_error", res.ReportError))
		}
		if res.Skipped {
			fields = append(fields, zap.String("skip_reason", res.SkipReason))
		}
		if res.ReportPath != "" {
			fields = append(fields, zap.String("report", res.ReportPath))
		}

		level := zap.InfoLevel
		statusMsg := "Snapshot is clean."

		switch res.Outcome() {
		case metrics.OutcomeSkipped:
			skippedCount++
			level = zap.WarnLevel
			statusMsg = "Snapshot processing SKIPPED."
		case metrics.OutcomeFailed:
			failCount++
			failedFiles = append(failedFiles, path)
			level = zap.ErrorLevel
			statusMsg = "Snapshot processing FAILED."
		case metrics.OutcomeDiscrepancy:
			discrepancyCount++
			discrepancyFiles = append(discrepancyFiles, path)
			level = zap.WarnLevel
			statusMsg = "Snapshot reconciled, but discrepancies REMAIN (see report)."
		case metrics.OutcomeFixed:
			fixedCount++
			statusMsg = "Snapshot FIXED."
		default:
			cleanCount++
		}
		logger.Log.Check(level, statusMsg).Write(fields...)
	}

	logger.Log.Info("-------------------- Reconciliation Summary --------------------",
		zap.Int("total_files_evaluated", totalFiles),
		zap.Int("files_clean", cleanCount),
		zap.Int("files_fixed", fixedCount),
		zap.Int("files_with_remaining_discrepancies", discrepancyCount),
		zap.Int("files_failed", failCount),
		zap.Int("files_skipped", skippedCount),
	)
	if len(failedFiles) > 0 {
		logger.Log.Error("Processing failures occurred for files", zap.Strings("files", failedFiles))
	}
	if len(discrepancyFiles) > 0 {
		logger.Log.Warn("Discrepancies remain for files (reports written)", zap.Strings("files", discrepancyFiles))
	}

	if failCount > 0 {
		logger.Log.Error("Overall run: COMPLETED WITH FAILURES.")
		return 1
	}
	if discrepancyCount > 0 {
		logger.Log.Warn("Overall run: COMPLETED, BUT DISCREPANCIES REMAIN (check reports).")
		return 2
	}
	if skippedCount == totalFiles && totalFiles > 0 {
		logger.Log.Warn("Overall run: COMPLETED, BUT ALL FILES WERE SKIPPED (check logs for reasons).")
		return 3
	}
	logger.Log.Info("Overall run: COMPLETED SUCCESSFULLY.")
	return 0
}
