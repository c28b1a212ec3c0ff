// Package cli wires the config, store, ancestry service and renderers into
// the forestry command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"forestry/internal/ancestry"
	"forestry/internal/config"
	"forestry/internal/output"
	"forestry/internal/shared/util"
	"forestry/internal/store"
)

// Run executes the command line and returns a process exit code.
func Run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		return 2
	}
	if opts.version {
		fmt.Printf("forestry v%s\n", versionString)
		return 0
	}

	logLevel := slog.LevelInfo
	if opts.verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "path", opts.configPath, "error", err)
		return 1
	}

	schema, err := ancestry.NewSchema(ancestry.OrphanStrategy(cfg.Tree.OrphanStrategy), cfg.Tree.CacheDepth)
	if err != nil {
		slog.Error("invalid tree configuration", "error", err)
		return 1
	}

	st, err := store.OpenSQLite(cfg.Store.Path, store.SQLiteOptions{
		Table:       cfg.Store.Table,
		PathColumn:  cfg.Store.PathColumn,
		DepthColumn: cfg.Store.DepthColumn,
	})
	if err != nil {
		slog.Error("failed to open store", "path", cfg.Store.Path, "error", err)
		return 1
	}
	defer st.Close()

	svc := ancestry.New(st, schema,
		ancestry.WithLogger(logger),
		ancestry.WithWriteLimiter(util.NewLimiter(cfg.Maintenance.WriteRate, cfg.Maintenance.WriteBurst)),
	)

	ctx := context.Background()

	metricsAddr := opts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Observability.MetricsAddr
	}
	if metricsAddr != "" {
		obs := NewObservabilityServer(metricsAddr, st)
		if err := obs.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() { _ = obs.Stop(ctx) }()
	}

	if err := dispatch(ctx, opts, svc, st); err != nil {
		var restricted *ancestry.DeletionRestrictedError
		var integrity *ancestry.IntegrityError
		switch {
		case errors.As(err, &restricted):
			slog.Error("deletion restricted", "node", restricted.NodeID)
		case errors.As(err, &integrity):
			slog.Error("integrity violation", "kind", string(integrity.Kind), "detail", integrity.Error())
		default:
			slog.Error("operation failed", "error", err)
		}
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(err) && path == defaultConfigPath {
		slog.Debug("no config file, using defaults", "path", path)
		return config.Default(), nil
	}
	return nil, err
}

func dispatch(ctx context.Context, opts cliOptions, svc *ancestry.Service, st *store.SQLite) error {
	switch {
	case opts.check:
		if err := svc.CheckIntegrity(ctx); err != nil {
			return err
		}
		fmt.Println("integrity ok")
		return nil

	case opts.restore:
		return svc.RestoreIntegrity(ctx)

	case opts.rebuildDepth:
		return svc.RebuildDepthCache(ctx)

	case opts.migrate:
		parents, err := st.ParentColumn(ctx)
		if err != nil {
			return err
		}
		n, err := svc.BuildPathsFromParentColumn(ctx, parents)
		if err != nil {
			return err
		}
		fmt.Printf("materialized %d paths\n", n)
		return nil

	case opts.arrange:
		var (
			arr *ancestry.Arrangement
			err error
		)
		if opts.subtree > 0 {
			arr, err = svc.ArrangeSubtree(ctx, opts.subtree)
		} else {
			arr, err = svc.Arrange(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Print(output.NewTreeRenderer().Render(arr))
		return nil

	case opts.roots:
		rows, err := svc.Roots(ctx)
		if err != nil {
			return err
		}
		printRows(rows)
		return nil

	case opts.ancestors > 0:
		rows, err := svc.AncestorsOf(ctx, opts.ancestors)
		if err != nil {
			return err
		}
		printRows(rows)
		return nil

	case opts.subtree > 0:
		rows, err := svc.SubtreeOf(ctx, opts.subtree)
		if err != nil {
			return err
		}
		printRows(rows)
		return nil

	case opts.atDepth >= 0:
		rows, err := svc.NodesAtDepth(ctx, ancestry.DepthScope(opts.depthScope), opts.atDepth)
		if err != nil {
			return err
		}
		printRows(rows)
		return nil

	case opts.add != "":
		var parent *int64
		if opts.parent > 0 {
			parent = &opts.parent
		}
		r, err := svc.Create(ctx, opts.add, parent)
		if err != nil {
			return err
		}
		fmt.Printf("created node %d\n", r.ID)
		return nil

	case opts.move != "":
		id, parent, err := parseMove(opts.move)
		if err != nil {
			return err
		}
		return svc.Move(ctx, id, parent)

	case opts.deleteID > 0:
		return svc.DeleteNode(ctx, opts.deleteID)
	}

	return fmt.Errorf("no operation selected; see -h")
}

// parseMove splits "<id>:<parent-id>" or "<id>:root".
func parseMove(arg string) (int64, *int64, error) {
	id64 := func(s string) (int64, error) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid node id %q", s)
		}
		return n, nil
	}
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("invalid -move %q, want <id>:<parent-id> or <id>:root", arg)
	}
	id, err := id64(parts[0])
	if err != nil {
		return 0, nil, err
	}
	if parts[1] == "root" {
		return id, nil, nil
	}
	parent, err := id64(parts[1])
	if err != nil {
		return 0, nil, err
	}
	return id, &parent, nil
}

func printRows(rows []store.Record) {
	for _, r := range rows {
		path := ""
		if r.Path != nil {
			path = *r.Path
		}
		fmt.Printf("%d\t%s\t%s\n", r.ID, path, r.Name)
	}
}
