package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/kostra/pkg/api"
	"github.com/hazyhaar/kostra/pkg/cohort"
	"github.com/hazyhaar/kostra/pkg/editor"
	"github.com/hazyhaar/kostra/pkg/hierarchy"
	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/names"
	"github.com/hazyhaar/kostra/pkg/rounding"
	"github.com/hazyhaar/kostra/pkg/table"
	"github.com/hazyhaar/kostra/pkg/validate"
)

func cmdAggregate(args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table (.csv or .xlsx)")
	out := fs.String("out", "", "output table")
	aggs := fs.String("agg", "", "comma-separated aggregations, run in order (default: by region column)")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	// Ask once; every aggregation in the chain reuses the answer.
	extras, err := e.opts.ResolveExtras(kostra.Present(t))
	if err != nil {
		return err
	}
	o := e.opts
	o.Extras = extras
	a := &hierarchy.Aggregator{Registry: e.reg, Options: o}
	list := kostra.ParseExtras(*aggs)
	if len(list) == 0 {
		list = []string{hierarchy.Auto.String()}
	}
	for _, name := range list {
		agg, err := hierarchy.ParseAggregation(name)
		if err != nil {
			return err
		}
		if t, err = a.Aggregate(e.ctx, t, agg); err != nil {
			return err
		}
	}
	return e.writeTable(*out, t)
}

func cmdAverage(args []string) error {
	fs := flag.NewFlagSet("average", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table")
	out := fs.String("out", "", "output table")
	cols := fs.String("cols", "", "comma-separated level variables to average")
	denom := fs.String("denominator", hierarchy.DefaultDenominator, "name of the helper counting column")
	round := fs.Bool("round", false, "round the averages half away from zero")
	decimals := fs.Int("decimals", 0, "decimals when rounding")
	restore := fs.Bool("restore-kinds", false, "convert columns back to their original kinds")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	a := &hierarchy.Aggregator{Registry: e.reg, Options: e.opts}
	res, changes, err := a.Averages(e.ctx, t, kostra.ParseExtras(*cols), hierarchy.AverageOptions{
		Denominator:  *denom,
		Round:        *round,
		Decimals:     *decimals,
		RestoreKinds: *restore,
	})
	if err != nil {
		return err
	}
	for _, ch := range changes {
		e.logger.Info("column kind", "column", ch.Column, "original", ch.Original, "post_op", ch.PostOp, "final", ch.Final)
	}
	return e.writeTable(*out, res)
}

func cmdSpread(args []string) error {
	fs := flag.NewFlagSet("spread", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "county municipality table with fylkesregion")
	out := fs.String("out", "", "output municipality table")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	a := &hierarchy.Aggregator{Registry: e.reg, Options: e.opts}
	res, err := a.SpreadToMunicipalities(e.ctx, t)
	if err != nil {
		return err
	}
	return e.writeTable(*out, res)
}

func cmdGender(args []string) error {
	fs := flag.NewFlagSet("gender", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table")
	out := fs.String("out", "", "output table")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	res, err := cohort.SumOverGender(t, e.opts)
	if err != nil {
		return err
	}
	return e.writeTable(*out, res)
}

func cmdAge(args []string) error {
	fs := flag.NewFlagSet("age", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table with periode and alder")
	out := fs.String("out", "", "output table")
	hier := fs.String("hierarchy", "", "age hierarchy file (.parquet, .csv or .xlsx)")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	if *hier == "" {
		return fmt.Errorf("-hierarchy is required")
	}
	groups, err := cohort.LoadAgeHierarchy(*hier)
	if err != nil {
		return err
	}
	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	res, err := cohort.SumToAgeGroups(t, groups, e.opts)
	if err != nil {
		return err
	}
	e.logger.Info("age groups summed", "group_by", strings.Join(res.GroupBy, ","), "renamed", res.Renamed)
	return e.writeTable(*out, res.Table)
}

func cmdRound(args []string) error {
	fs := flag.NewFlagSet("round", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table")
	out := fs.String("out", "", "output table")
	mapping := fs.String("mapping", "", "YAML conversion mapping; without it the template is printed")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	if *mapping == "" {
		fmt.Println(rounding.Instructions())
		return nil
	}
	m, err := rounding.LoadMapping(*mapping)
	if err != nil {
		return err
	}
	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	res, err := rounding.Convert(t, m, e.logger)
	if err != nil {
		return err
	}
	return e.writeTable(*out, res.Table)
}

func cmdNames(args []string) error {
	fs := flag.NewFlagSet("names", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table with one periode")
	out := fs.String("out", "", "output table")
	specsPath := fs.String("specs", "", "YAML list of name specs")
	columns := fs.String("columns", "", "short form: column:klass_id[:level], comma separated")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	var specs []names.Spec
	switch {
	case *specsPath != "":
		specs, err = names.LoadSpecs(*specsPath)
	case *columns != "":
		specs, err = names.ParseSpecs(*columns)
	default:
		err = fmt.Errorf("give -specs or -columns")
	}
	if err != nil {
		return err
	}
	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	res, _, err := names.Attach(e.ctx, e.reg, t, specs, names.Options{
		Language:      e.cfg.Language,
		IncludeFuture: e.cfg.IncludeFuture,
		Logger:        e.logger,
	})
	if err != nil {
		return err
	}
	return e.writeTable(*out, res)
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table")
	classVars := fs.String("class-vars", "", "comma-separated classification variables (default: derived)")
	ids := fs.String("ids", "", "registry ids for extra columns, e.g. funksjon=277,art=278")
	report := fs.String("report", "", "write the report as JSON to this file")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	v := &validate.Validator{
		Registry: e.reg,
		IDs:      e.cfg.KlassIDs,
		Language: e.cfg.Language,
		Prompter: &kostra.ConsolePrompter{In: os.Stdin, Out: os.Stderr},
		Options:  e.opts,
	}
	if *ids != "" {
		pairs, err := parsePairs(*ids)
		if err != nil {
			return err
		}
		v.IDs = make(map[string]int, len(e.cfg.KlassIDs)+len(pairs))
		for k, id := range e.cfg.KlassIDs {
			v.IDs[k] = id
		}
		for k, s := range pairs {
			id, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("id for %q: %w", k, err)
			}
			v.IDs[k] = id
		}
	}

	rep, err := v.Run(e.ctx, t, kostra.ParseExtras(*classVars))
	if err != nil {
		return err
	}
	if *report != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*report, data, 0o644); err != nil {
			return err
		}
	}
	if !rep.OK() {
		return fmt.Errorf("%d errors, %d warnings", rep.Count(validate.Error), rep.Count(validate.Warning))
	}
	e.logger.Info("validation passed", "warnings", rep.Count(validate.Warning))
	return nil
}

func (e *env) service() *api.Service {
	return &api.Service{
		Registry: e.reg,
		IDs:      e.cfg.KlassIDs,
		Language: e.cfg.Language,
		Logger:   e.logger,
		Timeout:  e.cfg.Timeout,
	}
}

func cmdMapping(args []string) error {
	fs := flag.NewFlagSet("mapping", flag.ExitOnError)
	c := commonFlags(fs)
	agg := fs.String("agg", "", "aggregation name")
	year := fs.String("year", "", "four-digit year")
	out := fs.String("out", "", "write the mapping here instead of printing it")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	resp, err := e.service().MappingEndpoint()(e.ctx, &api.MappingRequest{Aggregation: *agg, Year: *year})
	if err != nil {
		return err
	}
	t := resp.(api.MappingResponse).Pairs.Table()
	if *out == "" {
		return table.Fprint(os.Stdout, t, 0)
	}
	return e.writeTable(*out, t)
}

func cmdKommunekorr(args []string) error {
	fs := flag.NewFlagSet("kommunekorr", flag.ExitOnError)
	c := commonFlags(fs)
	year := fs.String("year", "", "four-digit year")
	out := fs.String("out", "", "output table")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	if *out == "" {
		return fmt.Errorf("-out is required")
	}
	_, err = e.service().CorrespondenceEndpoint()(e.ctx, &api.CorrespondenceRequest{Year: *year, Output: *out})
	return err
}

func cmdEdit(args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	c := commonFlags(fs)
	in := fs.String("in", "", "input table")
	out := fs.String("out", "", "edited table")
	changesOut := fs.String("changes", "", "write the change log table here")
	filter := fs.String("filter", "", "exact-match filter, e.g. kommuneregion=0301,funksjon=100")
	column := fs.String("column", "", "statistical column to edit")
	value := fs.String("value", "", "new value")
	missing := fs.Bool("missing", false, "set the cells to missing")
	rows := fs.String("rows", "", "row ids to edit; default all matched rows")
	reason := fs.String("reason", "", "reason for the change (required)")
	user := fs.String("user", "", "user recorded with the changes")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	t, err := e.readTable(*in)
	if err != nil {
		return err
	}
	var opts []editor.Option
	if *user != "" {
		opts = append(opts, editor.WithUser(*user))
	}
	if e.cfg.EditLogDB != "" {
		store, err := editor.OpenLogStore(e.cfg.EditLogDB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, editor.WithStore(store))
	}
	ed, err := editor.New(t, e.opts, opts...)
	if err != nil {
		return err
	}

	filters, err := parsePairs(*filter)
	if err != nil {
		return err
	}
	sel, err := ed.Filter(filters)
	if err != nil {
		return err
	}
	table.Fprint(os.Stderr, sel.Table, 20)

	edit := editor.Edit{Column: *column, Value: *value, SetMissing: *missing, Reason: *reason}
	if *rows == "" {
		edit.All = true
	} else if edit.Rows, err = parseRows(*rows); err != nil {
		return err
	}
	if _, err := ed.Commit(e.ctx, edit); err != nil {
		return err
	}

	res, changes := ed.Results()
	if err := e.writeTable(*out, res); err != nil {
		return err
	}
	if *changesOut != "" {
		return e.writeTable(*changesOut, editor.ChangesTable(changes, ed.Variables().Classification))
	}
	return nil
}

func cmdSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	c := commonFlags(fs)
	kind := fs.String("kind", klass.KindCodes, "codes or correspondence")
	id := fs.String("id", "", "snapshot id (default derived)")
	classification := fs.Int("classification", 0, "KLASS classification id")
	target := fs.Int("target", 0, "target classification id for correspondences")
	year := fs.String("year", "", "four-digit year")
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	m, err := klass.WriteSnapshot(e.ctx, e.reg, e.cfg.SnapshotDir, klass.SnapshotRequest{
		ID:             *id,
		Kind:           *kind,
		Classification: *classification,
		Target:         *target,
		Year:           *year,
		Language:       e.cfg.Language,
	})
	if err != nil {
		return err
	}
	e.logger.Info("snapshot written", "id", m.ID, "dir", e.cfg.SnapshotDir, "valid_from", m.ValidFrom, "valid_to", m.ValidTo)
	return nil
}

func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	c := commonFlags(fs)
	e, stop, err := c.setup(args)
	if err != nil {
		return err
	}
	defer stop()

	srv := server.NewMCPServer("kostra", version, server.WithToolCapabilities(false))
	api.RegisterMCPTools(srv, e.service())
	e.logger.Info("kostra MCP server on stdio", "version", version)
	return server.ServeStdio(srv)
}
