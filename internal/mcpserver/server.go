// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the recipe catalog for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/panela/internal/models"
	"github.com/starford/panela/internal/recipeform"
)

// RecipeReader is the read side of the recipe API.
type RecipeReader interface {
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, id int64) (*models.Recipe, error)
}

// Server wraps the MCP server with catalog tools.
type Server struct {
	mcp *server.MCPServer
	api RecipeReader
}

// New creates a new MCP server with all catalog tools registered.
func New(api RecipeReader) *Server {
	s := &Server{api: api}

	s.mcp = server.NewMCPServer(
		"Panela Mágica",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_recipes",
		mcp.WithDescription("List every recipe in the catalog with id, name, category and author."),
		mcp.WithString("tipo", mcp.Description("Optional category filter")),
	), s.listRecipes)

	s.mcp.AddTool(mcp.NewTool("search_recipes",
		mcp.WithDescription("Find recipes whose name or ingredients contain the query (case-insensitive)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
	), s.searchRecipes)

	s.mcp.AddTool(mcp.NewTool("get_recipe",
		mcp.WithDescription("Read the full recipe: ingredients, preparation and image URL."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Recipe id")),
	), s.getRecipe)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the categories a recipe may belong to."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("validate_recipe",
		mcp.WithDescription("Check a recipe draft against the form rules without saving it. "+
			"The draft is JSON with nome, tipo, ingredientes [{nome, quantidade}] and modo_de_preparo. "+
			"Images are not checked. Read "+RecipeRulesURI+" for the full rules."),
		mcp.WithString("recipe", mcp.Required(), mcp.Description("Recipe draft as JSON")),
	), s.validateRecipe)

	s.mcp.AddResource(
		mcp.NewResource(RecipeRulesURI, "Recipe Rules",
			mcp.WithResourceDescription("Field limits every recipe must satisfy."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecipeRules,
	)

	return s
}

// ServeStdio runs the MCP server on stdin/stdout until ctx is cancelled
// or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve speaks MCP over in and out. Cancellation is a clean stop.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type recipeSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"nome"`
	Category string `json:"tipo"`
	Creator  string `json:"criador"`
}

func summarize(recipes []models.Recipe) []recipeSummary {
	out := make([]recipeSummary, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, recipeSummary{ID: r.ID, Name: r.Name, Category: r.Category, Creator: r.Creator.Name})
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listRecipes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipes, err := s.api.ListRecipes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if category := req.GetString("tipo", ""); category != "" {
		filtered := recipes[:0:0]
		for _, r := range recipes {
			if r.Category == category {
				filtered = append(filtered, r)
			}
		}
		recipes = filtered
	}
	return jsonResult(summarize(recipes)), nil
}

func (s *Server) searchRecipes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return mcp.NewToolResultError("query is empty"), nil
	}

	recipes, err := s.api.ListRecipes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var hits []models.Recipe
	for _, r := range recipes {
		if matches(r, query) {
			hits = append(hits, r)
		}
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no recipes found"), nil
	}
	return jsonResult(summarize(hits)), nil
}

func matches(r models.Recipe, query string) bool {
	if strings.Contains(strings.ToLower(r.Name), query) {
		return true
	}
	for _, ing := range r.Ingredients {
		if strings.Contains(strings.ToLower(ing.Name), query) {
			return true
		}
	}
	return false
}

func (s *Server) getRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireFloat("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := int64(raw)
	if id <= 0 || float64(id) != raw {
		return mcp.NewToolResultError(fmt.Sprintf("invalid id: %v", raw)), nil
	}

	rec, err := s.api.GetRecipe(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rec == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(models.Categories, "\n")), nil
}

func (s *Server) validateRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("recipe")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var draft models.RecipeInput
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid recipe JSON: %v", err)), nil
	}
	in := recipeform.Input{
		Name:          draft.Name,
		Category:      draft.Category,
		Ingredients:   draft.Ingredients,
		Instructions:  draft.Instructions,
		ExistingImage: draft.Image,
	}

	err = in.Validate(recipeform.ModeEdit)
	var verr *recipeform.ValidationError
	switch {
	case err == nil:
		return mcp.NewToolResultText("ok"), nil
	case errors.As(err, &verr):
		return mcp.NewToolResultText(strings.Join(verr.Messages, "\n")), nil
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
}

func (s *Server) readRecipeRules(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RecipeRulesURI,
			MIMEType: "text/markdown",
			Text:     RecipeRules,
		},
	}, nil
}
