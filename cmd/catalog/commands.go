// cmd/catalog/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/jmoiron/sqlx"

	"locallibrary/internal/catalog"
	"locallibrary/internal/config"
	"locallibrary/internal/db"
	"locallibrary/internal/fixtures"
	"locallibrary/internal/telemetry"
	"locallibrary/internal/urls"
)

const usage = `usage: catalog [flags] <command> [arguments]

commands:
  migrate                 create the catalog tables
  load <file>             load a JSON fixture
  dump [file]             write the catalog as a JSON fixture (default stdout)
  list <kind>             list genres, languages, authors, books or instances
  resolve <path>          show the record a catalog path refers to
  history <entity> <id>   show the change log of one record
`

var errUsage = errors.New("invalid usage")

// app is what every command works with.
type app struct {
	logger  *slog.Logger
	conn    *sqlx.DB
	catalog *catalog.Catalog
	router  *urls.Router
	stdout  io.Writer
	now     func() time.Time
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, rest, err := config.Load(args, stderr)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: no command given", errUsage)
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	shutdown, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	router, err := urls.New(catalog.Routes)
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Debug("database connected", "type", cfg.DatabaseType)

	a := &app{
		logger:  logger,
		conn:    conn,
		catalog: catalog.New(conn),
		router:  router,
		stdout:  stdout,
		now:     time.Now,
	}

	command, params := rest[0], rest[1:]
	switch command {
	case "migrate":
		return a.migrate(ctx, params)
	case "load":
		return a.load(ctx, params)
	case "dump":
		return a.dump(ctx, params)
	case "list":
		return a.list(ctx, params)
	case "resolve":
		return a.resolve(ctx, params)
	case "history":
		return a.history(ctx, params)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func (a *app) migrate(ctx context.Context, params []string) error {
	if len(params) != 0 {
		return fmt.Errorf("%w: migrate takes no arguments", errUsage)
	}
	if err := db.CreateSchema(ctx, a.conn); err != nil {
		return err
	}
	a.logger.Info("database schema ready")
	return nil
}

func (a *app) load(ctx context.Context, params []string) error {
	if len(params) != 1 {
		return fmt.Errorf("%w: load takes one fixture file", errUsage)
	}

	f, err := os.Open(params[0])
	if err != nil {
		return err
	}
	defer f.Close()

	counts, err := fixtures.Load(ctx, a.catalog, f)
	if err != nil {
		return fmt.Errorf("load %s: %w", params[0], err)
	}
	a.logger.Info("fixture loaded", "file", params[0], "records", counts.Total())
	return nil
}

func (a *app) dump(ctx context.Context, params []string) error {
	if len(params) > 1 {
		return fmt.Errorf("%w: dump takes at most one file", errUsage)
	}

	w := a.stdout
	if len(params) == 1 {
		f, err := os.Create(params[0])
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	counts, err := fixtures.Dump(ctx, a.catalog, w)
	if err != nil {
		return err
	}
	a.logger.Info("catalog dumped", "records", counts.Total())
	return nil
}

func (a *app) list(ctx context.Context, params []string) error {
	if len(params) != 1 {
		return fmt.Errorf("%w: list takes one of genres, languages, authors, books, instances", errUsage)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch params[0] {
	case "genres":
		genres, err := a.catalog.Genres.List(ctx)
		if err != nil {
			return err
		}
		for _, g := range genres {
			if err := a.row(tw, g.ID, g.String(), g); err != nil {
				return err
			}
		}

	case "languages":
		languages, err := a.catalog.Languages.List(ctx)
		if err != nil {
			return err
		}
		for _, l := range languages {
			if err := a.row(tw, l.ID, l.String(), l); err != nil {
				return err
			}
		}

	case "authors":
		authors, err := a.catalog.Authors.List(ctx)
		if err != nil {
			return err
		}
		for _, au := range authors {
			if err := a.row(tw, au.ID, au.String(), au); err != nil {
				return err
			}
		}

	case "books":
		books, err := a.catalog.Books.List(ctx)
		if err != nil {
			return err
		}
		for _, b := range books {
			if err := a.row(tw, b.ID, b.String(), b); err != nil {
				return err
			}
		}

	case "instances":
		instances, err := a.catalog.Instances.List(ctx)
		if err != nil {
			return err
		}
		for _, i := range instances {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", i, i.Status.Label(), a.due(i.DueBack))
		}

	default:
		return fmt.Errorf("%w: cannot list %q", errUsage, params[0])
	}
	return nil
}

type linkable interface {
	AbsoluteURL(catalog.Reverser) (string, error)
}

func (a *app) row(w io.Writer, id int64, display string, entity linkable) error {
	path, err := entity.AbsoluteURL(a.router)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d\t%s\t%s\n", id, display, path)
	return err
}

func (a *app) due(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("due %s (%s)", t.Format(time.DateOnly), humanize.RelTime(*t, a.now(), "ago", "from now"))
}

func (a *app) resolve(ctx context.Context, params []string) error {
	if len(params) != 1 {
		return fmt.Errorf("%w: resolve takes one path", errUsage)
	}

	m, err := a.router.Resolve(params[0])
	if err != nil {
		return err
	}
	id, err := m.Int64("id")
	if err != nil {
		return err
	}

	var display string
	switch m.Name {
	case catalog.RouteGenreDetail:
		g, err := a.catalog.Genres.Get(ctx, id)
		if err != nil {
			return err
		}
		display = g.String()

	case catalog.RouteLanguageDetail:
		l, err := a.catalog.Languages.Get(ctx, id)
		if err != nil {
			return err
		}
		display = l.String()

	case catalog.RouteAuthorDetail:
		au, err := a.catalog.Authors.Get(ctx, id)
		if err != nil {
			return err
		}
		display = au.String()
		books, err := a.catalog.Authors.Books(ctx, id)
		if err != nil {
			return err
		}
		if len(books) > 0 {
			titles := make([]string, len(books))
			for i, b := range books {
				titles[i] = b.Title
			}
			display += " (" + strings.Join(titles, ", ") + ")"
		}

	case catalog.RouteBookDetail:
		b, err := a.catalog.Books.Get(ctx, id)
		if err != nil {
			return err
		}
		display = b.String()
		instances, err := a.catalog.Books.Instances(ctx, id)
		if err != nil {
			return err
		}
		display += fmt.Sprintf(" (%s)", english.Plural(len(instances), "copy", "copies"))

	default:
		return fmt.Errorf("route %s has no record view", m.Name)
	}

	_, err = fmt.Fprintf(a.stdout, "%s %d: %s\n", m.Name, id, display)
	return err
}

func (a *app) history(ctx context.Context, params []string) error {
	if len(params) != 2 {
		return fmt.Errorf("%w: history takes an entity type and an id", errUsage)
	}

	entries, err := a.catalog.Log.History(ctx, params[0], params[1])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no history for %s %s: %w", params[0], params[1], catalog.ErrNotFound)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, e := range entries {
		fmt.Fprintf(tw, "v%d\t%s\t%s\t%s\n", e.Version, e.Action, humanize.Time(e.CreatedAt), e.Payload)
	}
	return nil
}
