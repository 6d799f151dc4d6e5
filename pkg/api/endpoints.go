// Package api exposes the KOSTRA operations as transport-agnostic
// kit.Endpoints served as MCP tools. The CLI reuses the registry queries.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/kostra/pkg/hierarchy"
	"github.com/hazyhaar/kostra/pkg/kit"
	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/names"
	"github.com/hazyhaar/kostra/pkg/table"
	"github.com/hazyhaar/kostra/pkg/validate"
)

// Service holds what every endpoint needs.
type Service struct {
	Registry klass.Registry
	// IDs maps extra classification columns to registry ids for validation.
	IDs      map[string]int
	Language string
	Logger   *slog.Logger
	// Timeout bounds each call; zero means none.
	Timeout time.Duration
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// wrap applies the shared middleware chain to an endpoint.
func (s *Service) wrap(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger(), name), kit.Timeout(s.Timeout))(ep)
}

// Requests and responses shared by the CLI and MCP transports.

type MappingRequest struct {
	Aggregation string
	Year        string
}

type MappingResponse struct {
	Aggregation string            `json:"aggregation"`
	Year        string            `json:"year"`
	Pairs       hierarchy.Mapping `json:"pairs"`
}

type AggregateRequest struct {
	Input  string
	Output string
	// Aggregations run in order on the output of the previous one.
	Aggregations []string
	Extras       []string
}

type FileResponse struct {
	Output  string   `json:"output"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

type ValidateRequest struct {
	Input     string
	ClassVars []string
	Extras    []string
}

type NamesRequest struct {
	Input  string
	Output string
	Specs  []names.Spec
}

type NamesResponse struct {
	FileResponse
	Diagnostics map[string]names.Diagnostics `json:"diagnostics"`
}

type CorrespondenceRequest struct {
	Year   string
	Output string
}

type CorrespondenceResponse struct {
	Records []map[string]any `json:"records,omitempty"`
	FileResponse
}

func (s *Service) options(extras []string) kostra.Options {
	if extras == nil {
		extras = []string{}
	}
	return kostra.Options{Extras: extras, Logger: s.logger()}
}

// MappingEndpoint returns the child -> parent pairs of one aggregation.
func (s *Service) MappingEndpoint() kit.Endpoint {
	return s.wrap("hierarchy_mapping", func(ctx context.Context, request any) (any, error) {
		req := request.(*MappingRequest)
		agg, err := hierarchy.ParseAggregation(req.Aggregation)
		if err != nil {
			return nil, err
		}
		if agg == hierarchy.Auto {
			return nil, fmt.Errorf("name an aggregation; auto needs a table")
		}
		a := &hierarchy.Aggregator{Registry: s.Registry}
		m, err := a.Mapping(ctx, agg, req.Year)
		if err != nil {
			return nil, err
		}
		return MappingResponse{Aggregation: agg.String(), Year: req.Year, Pairs: m}, nil
	})
}

// AggregateEndpoint reads a table, adds the parent-region rows and writes
// the result.
func (s *Service) AggregateEndpoint() kit.Endpoint {
	return s.wrap("aggregate_regions", func(ctx context.Context, request any) (any, error) {
		req := request.(*AggregateRequest)
		if req.Output == "" {
			return nil, fmt.Errorf("output path is required")
		}
		t, err := table.ReadFile(req.Input, table.ReadOptions{TextColumns: kostra.ReservedColumns})
		if err != nil {
			return nil, err
		}
		a := &hierarchy.Aggregator{Registry: s.Registry, Options: s.options(req.Extras)}
		aggs := req.Aggregations
		if len(aggs) == 0 {
			aggs = []string{hierarchy.Auto.String()}
		}
		for _, name := range aggs {
			agg, err := hierarchy.ParseAggregation(name)
			if err != nil {
				return nil, err
			}
			if t, err = a.Aggregate(ctx, t, agg); err != nil {
				return nil, err
			}
		}
		return writeTable(req.Output, t)
	})
}

// ValidateEndpoint runs the dataset checks. Columns without a configured
// registry id are skipped since there is nobody to ask.
func (s *Service) ValidateEndpoint() kit.Endpoint {
	return s.wrap("validate_dataset", func(ctx context.Context, request any) (any, error) {
		req := request.(*ValidateRequest)
		t, err := table.ReadFile(req.Input, table.ReadOptions{NoInference: true})
		if err != nil {
			return nil, err
		}
		v := &validate.Validator{
			Registry: s.Registry,
			IDs:      s.IDs,
			Language: s.Language,
			Options:  s.options(req.Extras),
		}
		return v.Run(ctx, t, req.ClassVars)
	})
}

// NamesEndpoint attaches code names to a table and writes the result.
func (s *Service) NamesEndpoint() kit.Endpoint {
	return s.wrap("attach_names", func(ctx context.Context, request any) (any, error) {
		req := request.(*NamesRequest)
		if req.Output == "" {
			return nil, fmt.Errorf("output path is required")
		}
		t, err := table.ReadFile(req.Input, table.ReadOptions{TextColumns: kostra.ReservedColumns})
		if err != nil {
			return nil, err
		}
		out, diags, err := names.Attach(ctx, s.Registry, t, req.Specs, names.Options{Language: s.Language, Logger: s.logger()})
		if err != nil {
			return nil, err
		}
		resp, err := writeTable(req.Output, out)
		if err != nil {
			return nil, err
		}
		return NamesResponse{FileResponse: resp, Diagnostics: diags}, nil
	})
}

// CorrespondenceEndpoint builds the municipality correspondence table for
// a year. Without an output path the rows are returned inline.
func (s *Service) CorrespondenceEndpoint() kit.Endpoint {
	return s.wrap("kommunekorr", func(ctx context.Context, request any) (any, error) {
		req := request.(*CorrespondenceRequest)
		t, err := hierarchy.MunicipalityCorrespondence(ctx, s.Registry, req.Year)
		if err != nil {
			return nil, err
		}
		if req.Output != "" {
			resp, err := writeTable(req.Output, t)
			return CorrespondenceResponse{FileResponse: resp}, err
		}
		rows := make([]map[string]any, t.Len())
		for i := range rows {
			rows[i] = t.Row(i)
		}
		return CorrespondenceResponse{Records: rows, FileResponse: FileResponse{Rows: t.Len(), Columns: t.Names()}}, nil
	})
}

func writeTable(path string, t *table.Table) (FileResponse, error) {
	if err := table.WriteFile(path, t); err != nil {
		return FileResponse{}, err
	}
	return FileResponse{Output: path, Rows: t.Len(), Columns: t.Names()}, nil
}
