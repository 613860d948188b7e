package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/partget/internal/config"
	"github.com/tanq16/partget/internal/output"
	"github.com/tanq16/partget/internal/scheduler"
	"github.com/tanq16/partget/internal/utils"
)

var (
	configFile string
	printer    = output.NewPrinter(os.Stdout)
)

var PartgetVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "partget [URL] -c CONNECTIONS",
	Short:   "partget is a parallel, resumable HTTP downloader",
	Version: PartgetVersion,
	Args:    cobra.ExactArgs(1),
	// Execute reports the error once
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDownload(cmd, args[0]); err != nil {
			printer.Error(err)
			os.Exit(1)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file (keys match flag names)")
	flags.IntP("connections", "c", 0, "Number of parallel connections (required, above 5 enables high-thread-mode)")
	flags.StringP("output", "o", "", "Output file path (inferred from the server or URL if not provided)")
	flags.DurationP("timeout", "t", 3*time.Minute, "Time to wait for response headers (eg. 5s, 10m)")
	flags.DurationP("keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringP("user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser user agent)")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.String("proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.String("proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayP("header", "H", []string{}, "Custom headers (like 'X-Trace: 1'); can be specified multiple times")
	flags.String("token", "", "Bearer token sent with every request")
	flags.Int("max-retries", utils.DefaultMaxRetries, "Retries per chunk before the download fails")
	flags.Duration("retry-delay", utils.DefaultRetryInitialDelay, "Initial delay between chunk retries")
	flags.Duration("retry-max-delay", utils.DefaultRetryMaxDelay, "Maximum delay between chunk retries")
	flags.Duration("poll-interval", utils.DefaultPollInterval, "Interval between progress lines")
	flags.String("scratch-dir", "", "Directory for chunk buffers (default: .partget-temp next to the output)")
	flags.String("metadata-out", "", "Write the transfer metadata as YAML to this file after the run")
	flags.Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newCleanCmd())
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.New(), cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	utils.InitLogger(cfg.Debug)
	return cfg, nil
}

func runDownload(cmd *cobra.Command, url string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := cfg.Job(url)
	runErr := scheduler.Run(ctx, job, printer)
	if runErr == nil {
		printer.Summary(job.Metadata)
	}
	if cfg.MetadataOut != "" && job.Metadata != nil {
		if err := writeMetadataFile(cfg.MetadataOut, job.Metadata); err != nil {
			printer.Warning(fmt.Sprintf("Could not write metadata: %v", err))
		}
	}
	return runErr
}

func writeMetadataFile(path string, meta *utils.TransferMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return output.WriteMetadata(file, meta)
}
