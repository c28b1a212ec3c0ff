package cli

import "flag"

const versionString = "1.0.0"
const defaultConfigPath = "./forestry.toml"

type cliOptions struct {
	configPath   string
	check        bool
	restore      bool
	rebuildDepth bool
	arrange      bool
	migrate      bool
	roots        bool
	subtree      int64
	ancestors    int64
	add          string
	parent       int64
	move         string
	deleteID     int64
	atDepth      int64
	depthScope   string
	metricsAddr  string
	verbose      bool
	version      bool
	args         []string
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("forestry", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.check, "check", false, "Run integrity check and exit non-zero on the first violation")
	fs.BoolVar(&opts.restore, "restore", false, "Repair malformed, dangling and cyclic ancestry, then exit")
	fs.BoolVar(&opts.rebuildDepth, "rebuild-depth", false, "Recompute the cached depth of every node (requires cache_depth)")
	fs.BoolVar(&opts.arrange, "arrange", false, "Print the forest as a tree (whole forest, or one subtree with -subtree)")
	fs.BoolVar(&opts.migrate, "migrate-parent-column", false, "Materialize ancestry paths from the legacy parent_id column")
	fs.BoolVar(&opts.roots, "roots", false, "List root nodes")
	fs.Int64Var(&opts.subtree, "subtree", 0, "Node id scoping -arrange, or listing its subtree on its own")
	fs.Int64Var(&opts.ancestors, "ancestors", 0, "List ancestors of this node id, root first")
	fs.StringVar(&opts.add, "add", "", "Create a node with this name (under -parent, or as a root)")
	fs.Int64Var(&opts.parent, "parent", 0, "Parent node id for -add")
	fs.StringVar(&opts.move, "move", "", "Move a node: <id>:<parent-id> or <id>:root")
	fs.Int64Var(&opts.deleteID, "delete", 0, "Delete this node id under the configured orphan strategy")
	fs.Int64Var(&opts.atDepth, "at-depth", -1, "List nodes selected by -depth-scope against this depth (requires cache_depth)")
	fs.StringVar(&opts.depthScope, "depth-scope", "at", "Depth combinator for -at-depth: before, to, at, from, after")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address for the run's duration")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
