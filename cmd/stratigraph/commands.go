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
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/stratigraph/internal/api"
	"github.com/dusk-indust/stratigraph/internal/engine"
	"github.com/dusk-indust/stratigraph/internal/export"
	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/mcptools"
	"github.com/dusk-indust/stratigraph/internal/strata"
	"github.com/dusk-indust/stratigraph/internal/validation"
	"github.com/dusk-indust/stratigraph/internal/watcher"
)

// relationFlags describe a relation on the command line.
type relationFlags struct {
	id              string
	anteriorUS      string
	anteriorFait    string
	posteriorUS     string
	posteriorFait   string
	contemporaneous bool
	relationType    int
}

func (f *relationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "relation ID (generated when empty)")
	cmd.Flags().StringVar(&f.anteriorUS, "anterior-us", "", "ID of the earlier US")
	cmd.Flags().StringVar(&f.anteriorFait, "anterior-fait", "", "ID of the earlier Fait")
	cmd.Flags().StringVar(&f.posteriorUS, "posterior-us", "", "ID of the later US")
	cmd.Flags().StringVar(&f.posteriorFait, "posterior-fait", "", "ID of the later Fait")
	cmd.Flags().BoolVar(&f.contemporaneous, "contemporaneous", false, "both sides existed at the same time")
	cmd.Flags().IntVar(&f.relationType, "type", 0, "application relation type")
}

func (f *relationFlags) relation() (strata.Relation, error) {
	rel := strata.Relation{
		ID:                f.id,
		AnteriorUsID:      f.anteriorUS,
		AnteriorFaitID:    f.anteriorFait,
		PosteriorUsID:     f.posteriorUS,
		PosteriorFaitID:   f.posteriorFait,
		IsContemporaneous: f.contemporaneous,
		RelationTypeID:    f.relationType,
		Live:              true,
	}
	return rel, rel.CheckEndpoints()
}

var (
	validateAll bool
	proposeRel  relationFlags
	commitRel   relationFlags
	auditOut    string
	diagramOut  string
)

var (
	validateCmd = &cobra.Command{
		Use:   "validate [relation-id...]",
		Short: "Validate stored relations through the engine",
		Long: `Validate walks the relation graph outward from each named relation and
reports the first paradox found. With --all every live relation is checked.
The exit status is 2 when any relation fails.`,
		RunE: runValidate,
	}

	proposeCmd = &cobra.Command{
		Use:   "propose",
		Short: "Check a relation without storing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rel, err := proposeRel.relation()
				if err != nil {
					return err
				}
				res, err := a.svc.ValidateNew(ctx, rel)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), rel.ID, res)
				if !res.OK {
					return errParadox
				}
				return nil
			})
		},
	}

	commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Validate a relation and store it when it introduces no paradox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rel, err := commitRel.relation()
				if err != nil {
					return err
				}
				rel, res, err := a.svc.Commit(ctx, rel)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), rel.ID, res)
				if !res.OK {
					return errParadox
				}
				return a.persist(ctx)
			})
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <relation-id>",
		Short: "Soft-delete a stored relation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.Remove(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return a.persist(ctx)
			})
		},
	}

	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Find every paradox on the site and print a JSON report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := export.ExportAudit(ctx, a.svc)
				if err != nil {
					return err
				}
				if err := writeOutput(cmd, auditOut, func(w io.Writer) error {
					return export.WriteJSON(w, report)
				}); err != nil {
					return err
				}
				if len(report.Paradoxes) > 0 {
					return errParadox
				}
				return nil
			})
		},
	}

	diagramCmd = &cobra.Command{
		Use:   "diagram",
		Short: "Print the contemporaneity groups as a Mermaid diagram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				out, err := export.GenerateMermaid(ctx, a.svc)
				if err != nil {
					return err
				}
				return writeOutput(cmd, diagramOut, func(w io.Writer) error {
					_, err := io.WriteString(w, out)
					return err
				})
			})
		},
	}

	batchCmd = &cobra.Command{
		Use:   "batch <relations.yml>",
		Short: "Check every relation of a YAML file as a proposal against the site",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the MCP validator tools",
		RunE:  runServe,
	}

	engineCmd = &cobra.Command{
		Use:   "engine",
		Short: "Run the validation engine as an MCP server on stdio",
		Long: `Engine serves the init and validate_relation tools on stdin and stdout.
It is the out-of-process engine that engine.mode remote starts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			eng := engine.NewLocalEngine(engine.WithTiers(tiersFrom(cfg.Budgets)), engine.WithLogger(logger))
			server := mcptools.NewEngineMCPServer(mcptools.NewEngineService(eng, logger))
			return mcptools.RunEngineMCPServerStdio(cmd.Context(), server)
		},
	}
)

func init() {
	validateCmd.Flags().BoolVar(&validateAll, "all", false, "validate every live relation")
	proposeRel.register(proposeCmd)
	commitRel.register(commitCmd)
	auditCmd.Flags().StringVarP(&auditOut, "output", "o", "", "write the report to a file instead of stdout")
	diagramCmd.Flags().StringVarP(&diagramOut, "output", "o", "", "write the diagram to a file instead of stdout")
}

// withApp opens the configured site, runs fn and closes everything.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResult(w io.Writer, id string, res strata.ValidationResult) {
	if id == "" {
		id = "proposal"
	}
	switch {
	case res.OK && res.Truncated:
		fmt.Fprintf(w, "%s: ok (%s)\n", id, res.Reason)
	case res.OK:
		fmt.Fprintf(w, "%s: ok\n", id)
	default:
		fmt.Fprintf(w, "%s: %s: %s\n", id, res.ParadoxType, res.Reason)
		if len(res.CyclePath) > 0 {
			fmt.Fprintf(w, "  path: %s\n", strata.FormatPath(res.CyclePath))
		}
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	if !validateAll && len(args) == 0 {
		return errors.New("name at least one relation or pass --all")
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ids := args
		if validateAll {
			rels, err := a.svc.Relations(ctx)
			if err != nil {
				return err
			}
			ids = make([]string, 0, len(rels))
			for _, r := range rels {
				ids = append(ids, r.ID)
			}
		}
		failed := false
		for _, id := range ids {
			res, err := a.svc.ValidateRelation(ctx, id)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), id, res)
			if !res.OK {
				failed = true
			}
		}
		if failed {
			return errParadox
		}
		return nil
	})
}

func runBatch(cmd *cobra.Command, args []string) error {
	d, err := graph.LoadDataset(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		reporter := validation.NewProgressReporter()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for p := range reporter.Subscribe() {
				fmt.Fprintln(cmd.ErrOrStderr(), validation.FormatProgress(p))
			}
		}()

		items, err := a.svc.ValidateBatch(ctx, d.Relations, reporter.Emit)
		reporter.Close()
		<-done
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return err
		}
		for _, it := range items {
			if it.Err != "" || !it.Result.OK {
				return errParadox
			}
		}
		return nil
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(cmd, func(_ context.Context, a *app) error {
		if err := a.svc.Rebuild(ctx); err != nil {
			return err
		}
		a.logger.Info("site loaded",
			zap.String("store", a.cfg.Store.Driver),
			zap.String("engine", a.svc.EngineName()),
			zap.String("version", version))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return api.Run(ctx, a.cfg.Server.Addr, api.NewRouter(a.svc, a.logger), a.logger)
		})
		if a.cfg.Server.MCPAddr != "" {
			g.Go(func() error {
				return mcptools.RunMCPServer(ctx, a.svc, a.cfg.Server.MCPAddr, a.logger)
			})
		}
		g.Go(func() error {
			return ignoreCancel(a.svc.Follow(ctx, a.store.Changes()))
		})
		if a.mem != nil && a.cfg.Store.Watch && a.cfg.Store.Dataset != "" {
			w := watcher.New(a.cfg.Store.Dataset, watcher.Reloader(a.cfg.Store.Dataset, a.mem, a.logger), a.logger)
			g.Go(func() error {
				return ignoreCancel(w.Watch(ctx))
			})
		}
		return g.Wait()
	})
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
