package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/logging"
	"github.com/shaunagostinho/vedirect-dash/internal/metrics"
	"github.com/shaunagostinho/vedirect-dash/internal/publish"
	"github.com/shaunagostinho/vedirect-dash/internal/server"
	"github.com/shaunagostinho/vedirect-dash/internal/store"
	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
	"github.com/shaunagostinho/vedirect-dash/web"
)

type serveOptions struct {
	configPath string
	demo       bool
	listenAddr string
	logLevel   string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard",
		Long:  "Read every configured VE.Direct device and serve the web dashboard, API and metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// An explicit flag wins over VEDIRECT_LOG_LEVEL
			level := opts.logLevel
			if !cmd.Flags().Changed("log-level") && os.Getenv(logging.LogLevelEnvVar) != "" {
				level = ""
			}
			return runServe(opts, level)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "/etc/vedirect-dash/config.yaml", "path to config file")
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "replace all devices with simulated ones")
	cmd.Flags().StringVar(&opts.listenAddr, "listen", "", "override listen address (e.g. :8080)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func runServe(opts serveOptions, level string) error {
	if err := logging.Initialize(level); err != nil {
		return err
	}
	defer logging.Sync()
	log := logging.Component("main")
	log.Info("vedirect-dash starting", zap.String("version", version))

	cfg := server.LoadConfig(opts.configPath)
	if opts.demo {
		cfg.UseDemo()
	}
	if opts.listenAddr != "" {
		cfg.Server.ListenAddr = opts.listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Optional outputs; the dashboard starts regardless
	var srvOpts server.Options
	if cfg.MQTT.Enabled {
		pub, err := publish.Connect(ctx, cfg.MQTT)
		if err != nil {
			log.Warn("mqtt disabled", zap.Error(err))
		} else {
			srvOpts.Publisher = pub
		}
	}
	if cfg.Store.Enabled {
		history, err := store.Open(cfg.Store.Path)
		if err != nil {
			log.Warn("history disabled", zap.Error(err))
		} else {
			defer history.Close()
			srvOpts.History = history
		}
	}

	srv := server.New(cfg, web.FS, srvOpts)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

type decodeOptions struct {
	strict    bool
	chunk     int
	maxFields int
	summary   bool
}

func newDecodeCmd() *cobra.Command {
	var opts decodeOptions

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a VE.Direct capture to JSON lines",
		Long: `Decode a raw VE.Direct byte stream from a file, or stdin when no file
or "-" is given. Each frame becomes one JSON line on stdout; rejected frames
are reported as {"error": ...} lines. A tally goes to stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Initialize(""); err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runDecode(in, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "reject frames containing undecodable values")
	cmd.Flags().IntVar(&opts.chunk, "chunk", 0, "feed the parser at most this many bytes per read (0 = no limit)")
	cmd.Flags().IntVar(&opts.maxFields, "max-fields", vedirect.DefaultMaxFields, "maximum fields per frame")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "print the flat summary instead of the full record")
	return cmd
}

// decodedLine is one line of decode output.
type decodedLine struct {
	Class   string            `json:"class,omitempty"`
	Record  vedirect.Record   `json:"record,omitempty"`
	Summary *vedirect.Summary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
	Kind    string            `json:"kind,omitempty"`
}

func runDecode(in io.Reader, out, errOut io.Writer, opts decodeOptions) error {
	if opts.chunk > 0 {
		in = &chunkReader{r: in, n: opts.chunk}
	}
	r := vedirect.NewReader(in,
		vedirect.WithStrict(opts.strict),
		vedirect.WithMaxFields(opts.maxFields),
	)
	enc := json.NewEncoder(out)
	tally := make(map[string]int)

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		var fe *vedirect.FrameError
		if err != nil && !errors.As(err, &fe) {
			return fmt.Errorf("read: %w", err)
		}

		kind := metrics.FrameResult(err)
		tally[kind]++

		line := decodedLine{}
		if err != nil {
			line.Error = err.Error()
			line.Kind = kind
		} else {
			line.Class = rec.Class().String()
			if opts.summary {
				s := vedirect.Summarize(rec)
				line.Summary = &s
			} else {
				line.Record = rec
			}
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}

	fmt.Fprintf(errOut, "records=%d checksum_mismatch=%d malformed=%d unknown_numeric=%d end_of_stream=%d\n",
		tally[metrics.ResultRecord],
		tally[metrics.ResultChecksumMismatch],
		tally[metrics.ResultMalformed],
		tally[metrics.ResultUnknownNumeric],
		tally[metrics.ResultEndOfStream],
	)
	return nil
}

// chunkReader caps every Read at n bytes.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vedirect-dash %s (commit: %s, built: %s)\n", version, gitCommit, buildTime)
		},
	}
}
