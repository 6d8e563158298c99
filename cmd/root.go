package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/endorses/voipfilter/internal/pkg/cmdutil"
	"github.com/endorses/voipfilter/internal/pkg/constants"
	"github.com/endorses/voipfilter/internal/pkg/logger"
	"github.com/endorses/voipfilter/internal/pkg/version"
	"github.com/endorses/voipfilter/internal/pkg/voip"
	"github.com/endorses/voipfilter/internal/pkg/voip/monitoring"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var cfgFile string

const longUsage = `voipfilter reads classic libpcap/tcpdump captures (pcapng is not supported),
keeps the SIP signalling of calls that match a filter together with their
RTP media, and writes the result as a single Linux cooked capture.

If no input captures are given, standard input is read. If --write is not
set, the filtered capture goes to standard output. Logs always go to
standard error.

Examples:

  Read with tcpdump, keep SIP and IP fragments, filter for a number and
  collect the result with a second tcpdump:

    tcpdump -r myCapture.pcap -w - 'udp port 5060 or (ip[6:2] & 0x1fff != 0)' \
      | voipfilter -f 0912222333 | tcpdump -r - -w capture-0912222333.pcap

  Merge several captures into one; without a filter every call matches:

    voipfilter -w merged.pcap myCapture-1.pcap myCapture-2.pcap myCapture-3.pcap`

type options struct {
	filter      string
	write       string
	sipPort     int
	keepGoing   bool
	stats       bool
	metricsFile string
	logLevel    string
	logFormat   string
	logFile     string
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "voipfilter [flags] [input pcaps...]",
		Short:         "Filter SIP calls and their RTP media out of pcap captures",
		Long:          longUsage,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, opts, args)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.voipfilter.yaml)")

	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "keep calls whose Call-ID, From or To contains this value")
	cmd.Flags().StringVarP(&opts.write, "write", "w", "", "destination pcap file (default stdout)")
	cmd.Flags().IntVar(&opts.sipPort, "sip-port", constants.DefaultSIPPort, "UDP port carrying SIP signalling")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "skip inputs that fail to decode instead of aborting")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print run statistics as YAML to stderr")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default info)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "log format: json or text (default json)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to a rotated file instead of stderr")

	return cmd
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	logger.Initialize()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".voipfilter")
	}

	viper.SetEnvPrefix("voipfilter")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log.max_size", constants.DefaultLogMaxSize)
	viper.SetDefault("log.max_backups", constants.DefaultLogMaxBackups)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// boolOption gives an explicitly set flag precedence over the config file.
func boolOption(cmd *cobra.Command, name, key string, flagValue bool) bool {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return cmdutil.GetBoolConfig(key, flagValue)
}

func intOption(cmd *cobra.Command, name, key string, flagValue int) int {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return cmdutil.GetIntConfig(key, flagValue)
}

func configureLogging(opts *options) error {
	maxSize, err := cmdutil.ParseSizeString(viper.GetString("log.max_size"))
	if err != nil {
		return fmt.Errorf("invalid log.max_size: %w", err)
	}
	sizeMB := int((maxSize + 1<<20 - 1) >> 20)

	return logger.Configure(logger.Config{
		Level:      cmdutil.GetStringConfig("log.level", opts.logLevel),
		Format:     cmdutil.GetStringConfig("log.format", opts.logFormat),
		File:       cmdutil.GetStringConfig("log.file", opts.logFile),
		MaxSizeMB:  sizeMB,
		MaxBackups: viper.GetInt("log.max_backups"),
	})
}

func runFilter(cmd *cobra.Command, opts *options, args []string) error {
	sipPort := intOption(cmd, "sip-port", "sip_port", opts.sipPort)
	if sipPort < 1 || sipPort > 65535 {
		return fmt.Errorf("invalid SIP port %d", sipPort)
	}

	log := logger.With("run_id", uuid.New().String())

	sources, closeSources, err := openSources(cmd, args)
	if err != nil {
		return err
	}
	defer closeSources()

	var sink io.Writer = cmd.OutOrStdout()
	var outFile *os.File
	if path := cmdutil.GetStringConfig("write", opts.write); path != "" {
		outFile, err = os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		sink = outFile
		log = log.With("output", path)
	}

	metrics := monitoring.NewMetrics()
	pipeline := voip.NewPipeline(voip.Config{
		Filter:          cmdutil.GetStringConfig("filter", opts.filter),
		SIPPort:         uint16(sipPort),
		ContinueOnError: boolOption(cmd, "keep-going", "keep_going", opts.keepGoing),
		Metrics:         metrics,
		Logger:          log,
	})

	stats, runErr := pipeline.Run(sources, sink)
	if outFile != nil {
		runErr = closeOutput(outFile, runErr)
	}

	if boolOption(cmd, "stats", "stats", opts.stats) {
		out, err := yaml.Marshal(stats)
		if err != nil {
			log.Warn("Failed to encode run statistics", "error", err)
		} else {
			fmt.Fprint(cmd.ErrOrStderr(), string(out))
		}
	}

	if path := cmdutil.GetStringConfig("metrics_file", opts.metricsFile); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warn("Failed to write metrics file", "path", path, "error", err)
		}
	}

	return runErr
}

// closeOutput closes the written capture. A close failure fails the run
// unless the run already failed.
func closeOutput(c io.Closer, runErr error) error {
	if err := c.Close(); err != nil && runErr == nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return runErr
}

// openSources resolves the input arguments to capture sources. Arguments
// that are not regular files are reported and skipped; the rest are read
// oldest first by modification time. Without arguments stdin is the only
// source.
func openSources(cmd *cobra.Command, args []string) ([]voip.Source, func(), error) {
	if len(args) == 0 {
		return []voip.Source{{Name: "stdin", Reader: cmd.InOrStdin()}}, func() {}, nil
	}

	paths, missing := collectInputs(args)
	if len(missing) > 0 {
		logger.Warn("Unable to find input captures", "paths", missing)
	}
	if len(paths) == 0 {
		return nil, nil, errors.New("no readable input captures")
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	sources := make([]voip.Source, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open input capture: %w", err)
		}
		files = append(files, f)
		sources = append(sources, voip.Source{Name: p, Reader: f})
	}
	return sources, closeAll, nil
}

// collectInputs splits args into regular files, sorted by modification
// time, and everything else.
func collectInputs(args []string) (paths, missing []string) {
	type input struct {
		path string
		info os.FileInfo
	}

	var inputs []input
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, arg)
			continue
		}
		inputs = append(inputs, input{path: arg, info: info})
	}

	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].info.ModTime().Before(inputs[j].info.ModTime())
	})

	for _, in := range inputs {
		paths = append(paths, in.path)
	}
	return paths, missing
}
