package cli

import "flag"

// ReconcileFlags are the flags for the batch reconcile command.
type ReconcileFlags struct {
	ConfigFile string
	CSVPath    string
	Match      bool
	DryRun     bool
	Limit      int
	Verbose    bool
}

// ParseReconcileFlags parses command line flags for the reconcile command.
func ParseReconcileFlags() *ReconcileFlags {
	flags := &ReconcileFlags{}
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.CSVPath, "csv", "", "Order-history CSV to import")
	flag.BoolVar(&flags.Match, "match", false, "Run a matching pass after import")
	flag.BoolVar(&flags.DryRun, "dry-run", false, "Score matches without persisting links")
	flag.IntVar(&flags.Limit, "limit", 0, "Max transactions to consider (0 = default)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	ConfigFile string
	Port       int
	Verbose    bool
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags() *ServeFlags {
	flags := &ServeFlags{}
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.IntVar(&flags.Port, "port", 0, "Port to listen on (0 = from config)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}
