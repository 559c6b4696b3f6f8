// Package mcp provides MCP server tools for inspecting stat encoding, fees and run history.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gateway-fm/matchstats/internal/fee"
	"github.com/gateway-fm/matchstats/internal/statcodec"
	"github.com/gateway-fm/matchstats/internal/storage"
)

// RunReader is the read side of the run log.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListSubmissions(ctx context.Context, runID string) ([]storage.Submission, error)
}

// RegisterTools registers all matchstats tools on the MCP server.
// Run history tools are only registered when runs is non-nil.
func RegisterTools(s *server.MCPServer, runs RunReader) {
	s.AddTool(packTool(), handlePack)
	s.AddTool(unpackTool(), handleUnpack)
	s.AddTool(feeTool(), handleFee)
	if runs != nil {
		s.AddTool(runTool(), runHandler(runs))
		s.AddTool(submissionsTool(), submissionsHandler(runs))
	}
}

// counterFields are the integer arguments of matchstats_pack, in packing order.
var counterFields = []string{
	"asistencias", "paradas", "penaltisParados", "despejes",
	"minutosJugados", "tarjetasAmarillas", "tarjetasRojas",
}

func packTool() gomcp.Tool {
	opts := []gomcp.ToolOption{
		gomcp.WithDescription("Validate one player's match statistics and pack them into the 32-bit stats word. Pure; does not touch the ledger."),
		gomcp.WithNumber("id",
			gomcp.Required(),
			gomcp.Description("Player id"),
		),
		gomcp.WithNumber("goles",
			gomcp.Description("Goals (0-8). Omit to see how an incomplete record is handled."),
		),
	}
	for _, f := range counterFields {
		opts = append(opts, gomcp.WithNumber(f, gomcp.Description(fmt.Sprintf("%s (default 0)", f))))
	}
	opts = append(opts,
		gomcp.WithBoolean("porteriaCero", gomcp.Description("Clean sheet")),
		gomcp.WithBoolean("ganoPartido", gomcp.Description("Match won")),
	)
	return gomcp.NewTool("matchstats_pack", opts...)
}

func handlePack(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	id := req.GetInt("id", -1)
	if id < 0 {
		return gomcp.NewToolResultError("id is required and must be non-negative"), nil
	}

	stat := statcodec.PlayerStat{
		ID:                uint64(id),
		Asistencias:       req.GetInt("asistencias", 0),
		Paradas:           req.GetInt("paradas", 0),
		PenaltisParados:   req.GetInt("penaltisParados", 0),
		Despejes:          req.GetInt("despejes", 0),
		MinutosJugados:    req.GetInt("minutosJugados", 0),
		TarjetasAmarillas: req.GetInt("tarjetasAmarillas", 0),
		TarjetasRojas:     req.GetInt("tarjetasRojas", 0),
		PorteriaCero:      req.GetBool("porteriaCero", false),
		GanoPartido:       req.GetBool("ganoPartido", false),
	}
	if _, ok := req.GetArguments()["goles"]; ok {
		stat.Goles = statcodec.IntPtr(req.GetInt("goles", 0))
	}

	if !stat.Complete() {
		return gomcp.NewToolResultText(joinLines(
			section("Record Skipped"),
			kv("Player", stat.ID),
			"goles is missing, so a batch would skip this record without using a nonce.",
		)), nil
	}

	word, err := statcodec.Pack(stat)
	if err != nil {
		var vErr *statcodec.ValidationError
		if errors.As(err, &vErr) {
			return gomcp.NewToolResultError(fmt.Sprintf("Validation failed: %v\n\nA batch aborts on this record.", err)), nil
		}
		return gomcp.NewToolResultError(fmt.Sprintf("Pack failed: %v", err)), nil
	}

	return gomcp.NewToolResultText(joinLines(
		section("Packed Stats"),
		kv("Player", stat.ID),
		kv("Word", word.String()),
		"",
		formatFields(statcodec.Unpack(word)),
	)), nil
}

func unpackTool() gomcp.Tool {
	return gomcp.NewTool("matchstats_unpack",
		gomcp.WithDescription("Decode a packed stats word (0x + 8 hex digits) into its fields. Paradas and despejes come back clamped, minutes as 3-minute steps."),
		gomcp.WithString("word",
			gomcp.Required(),
			gomcp.Description("Packed word, e.g. 0x878a0512"),
		),
	)
}

func handleUnpack(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	raw, err := req.RequireString("word")
	if err != nil {
		return gomcp.NewToolResultError("word is required"), nil
	}
	word, err := statcodec.ParsePackedWord(strings.TrimSpace(raw))
	if err != nil {
		return gomcp.NewToolResultError(fmt.Sprintf("Invalid word: %v", err)), nil
	}
	return gomcp.NewToolResultText(joinLines(
		section("Unpacked Stats"),
		kv("Word", word.String()),
		"",
		formatFields(statcodec.Unpack(word)),
	)), nil
}

func feeTool() gomcp.Tool {
	return gomcp.NewTool("matchstats_fee",
		gomcp.WithDescription("Compute the EIP-1559 fee parameters a submission would use for a given base fee."),
		gomcp.WithString("base_fee",
			gomcp.Required(),
			gomcp.Description("Base fee in wei, decimal or 0x-prefixed hex"),
		),
	)
}

func handleFee(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	raw, err := req.RequireString("base_fee")
	if err != nil {
		return gomcp.NewToolResultError("base_fee is required"), nil
	}
	baseFee, err := parseWei(raw)
	if err != nil {
		return gomcp.NewToolResultError(fmt.Sprintf("Invalid base_fee: %v", err)), nil
	}
	params, err := fee.Estimate(baseFee)
	if err != nil {
		return gomcp.NewToolResultError(fmt.Sprintf("Fee estimate failed: %v", err)), nil
	}
	return gomcp.NewToolResultText(joinLines(
		section("Fee Parameters"),
		kv("Base Fee", formatWei(params.BaseFee)),
		kv("Priority Tip", formatWei(params.Tip)),
		kv("Max Fee", formatWei(params.MaxFee)),
	)), nil
}

func runTool() gomcp.Tool {
	return gomcp.NewTool("matchstats_run",
		gomcp.WithDescription("Get the summary of a recorded batch run by ID."),
		gomcp.WithString("id",
			gomcp.Required(),
			gomcp.Description("Run ID"),
		),
	)
}

func runHandler(runs RunReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return gomcp.NewToolResultError("id is required"), nil
		}
		run, err := runs.GetRun(ctx, id)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Run lookup failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatRun(run)), nil
	}
}

func submissionsTool() gomcp.Tool {
	return gomcp.NewTool("matchstats_submissions",
		gomcp.WithDescription("List the confirmed submissions of a batch run in nonce order."),
		gomcp.WithString("run_id",
			gomcp.Required(),
			gomcp.Description("Run ID"),
		),
		gomcp.WithNumber("limit",
			gomcp.Description("Max rows to show (default: 50)"),
		),
	)
}

func submissionsHandler(runs RunReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		runID, err := req.RequireString("run_id")
		if err != nil {
			return gomcp.NewToolResultError("run_id is required"), nil
		}
		limit := req.GetInt("limit", 50)

		subs, err := runs.ListSubmissions(ctx, runID)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Submissions lookup failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatSubmissions(subs, limit)), nil
	}
}

// parseWei accepts a decimal or 0x-prefixed hex amount.
func parseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig("0x" + s[2:])
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}
