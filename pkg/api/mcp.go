package api

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/kostra/pkg/kit"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/names"
)

// RegisterMCPTools registers the KOSTRA MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, s *Service) {
	kit.RegisterMCPTool(srv, mappingTool(), s.MappingEndpoint(), decodeMapping)
	kit.RegisterMCPTool(srv, aggregateTool(), s.AggregateEndpoint(), decodeAggregate)
	kit.RegisterMCPTool(srv, validateTool(), s.ValidateEndpoint(), decodeValidate)
	kit.RegisterMCPTool(srv, namesTool(), s.NamesEndpoint(), decodeNames)
	kit.RegisterMCPTool(srv, correspondenceTool(), s.CorrespondenceEndpoint(), decodeCorrespondence)
}

func mappingTool() mcp.Tool {
	return mcp.NewTool("hierarchy_mapping",
		mcp.WithDescription("List the child -> parent region pairs of a KOSTRA aggregation for one year."),
		mcp.WithString("aggregation", mcp.Required(), mcp.Description("kommune_til_landet, kommune_til_fylkeskommune, fylkeskommune_til_kostraregion or bydeler_til_EAB")),
		mcp.WithString("year", mcp.Required(), mcp.Description("Four-digit year")),
	)
}

func aggregateTool() mcp.Tool {
	return mcp.NewTool("aggregate_regions",
		mcp.WithDescription("Add parent-region rows (nation, counties, KOSTRA groups, Oslo) to a KOSTRA table file and write the result."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Path to a .csv or .xlsx file with one periode")),
		mcp.WithString("output", mcp.Required(), mcp.Description("Path of the .csv or .xlsx file to write")),
		mcp.WithString("aggregations", mcp.Description("Comma-separated aggregations run in order; default picks one from the region column")),
		mcp.WithString("extras", mcp.Description("Comma-separated extra classification variables (e.g. funksjon,art)")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("validate_dataset",
		mcp.WithDescription("Check a KOSTRA table for missing columns, missing values, code formats, periods and codes unknown to KLASS."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Path to a .csv or .xlsx file")),
		mcp.WithString("class_vars", mcp.Description("Comma-separated classification variables; default derives them from the table")),
		mcp.WithString("extras", mcp.Description("Comma-separated extra classification variables used when class_vars is empty")),
	)
}

func namesTool() mcp.Tool {
	return mcp.NewTool("attach_names",
		mcp.WithDescription("Insert a <code>_navn column after each code column using KLASS names for the table's periode."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Path to a .csv or .xlsx file with one periode")),
		mcp.WithString("output", mcp.Required(), mcp.Description("Path of the file to write")),
		mcp.WithString("columns", mcp.Required(), mcp.Description("Comma-separated column:klass_id pairs, optionally :level (e.g. funksjon:277:2)")),
	)
}

func correspondenceTool() mcp.Tool {
	return mcp.NewTool("kommunekorr",
		mcp.WithDescription("Build the municipality -> county -> KOSTRA group correspondence table for a year."),
		mcp.WithString("year", mcp.Required(), mcp.Description("Four-digit year")),
		mcp.WithString("output", mcp.Description("Optional path; without it the rows are returned inline")),
	)
}

func stringArg(req mcp.CallToolRequest, key string) string {
	v, _ := req.GetArguments()[key].(string)
	return strings.TrimSpace(v)
}

func required(req mcp.CallToolRequest, keys ...string) error {
	for _, k := range keys {
		if stringArg(req, k) == "" {
			return fmt.Errorf("%s is required", k)
		}
	}
	return nil
}

// listArg returns nil for an absent argument so defaults still apply.
func listArg(req mcp.CallToolRequest, key string) []string {
	v := stringArg(req, key)
	if v == "" {
		return nil
	}
	return kostra.ParseExtras(v)
}

func decodeMapping(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	if err := required(req, "aggregation", "year"); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &MappingRequest{
		Aggregation: stringArg(req, "aggregation"),
		Year:        stringArg(req, "year"),
	}}, nil
}

func decodeAggregate(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	if err := required(req, "input", "output"); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &AggregateRequest{
		Input:        stringArg(req, "input"),
		Output:       stringArg(req, "output"),
		Aggregations: listArg(req, "aggregations"),
		Extras:       listArg(req, "extras"),
	}}, nil
}

func decodeValidate(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	if err := required(req, "input"); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &ValidateRequest{
		Input:     stringArg(req, "input"),
		ClassVars: listArg(req, "class_vars"),
		Extras:    listArg(req, "extras"),
	}}, nil
}

func decodeNames(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	if err := required(req, "input", "output", "columns"); err != nil {
		return nil, err
	}
	specs, err := names.ParseSpecs(stringArg(req, "columns"))
	if err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &NamesRequest{
		Input:  stringArg(req, "input"),
		Output: stringArg(req, "output"),
		Specs:  specs,
	}}, nil
}

func decodeCorrespondence(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	if err := required(req, "year"); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &CorrespondenceRequest{
		Year:   stringArg(req, "year"),
		Output: stringArg(req, "output"),
	}}, nil
}
