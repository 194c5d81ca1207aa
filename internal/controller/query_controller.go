package controller

import (
	"context"

	"ai-knowledge-be/internal/pkg/serverutils"
	"ai-knowledge-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IQueryController interface {
	RegisterRoutes(r fiber.Router)
	Simple(ctx *fiber.Ctx) error
	Semantic(ctx *fiber.Ctx) error
	Hybrid(ctx *fiber.Ctx) error
	Structured(ctx *fiber.Ctx) error
	Conversational(ctx *fiber.Ctx) error
	Summary(ctx *fiber.Ctx) error
	Citation(ctx *fiber.Ctx) error
	Intelligent(ctx *fiber.Ctx) error
	Batch(ctx *fiber.Ctx) error
	Suggestions(ctx *fiber.Ctx) error
	Related(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type queryController struct {
	service   service.IQueryService
	jwtSecret string
}

func NewQueryController(service service.IQueryService, jwtSecret string) IQueryController {
	return &queryController{service: service, jwtSecret: jwtSecret}
}

func (c *queryController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/query")
	h.Use(serverutils.OptionalJwtMiddleware(c.jwtSecret))
	h.Post("/simple", c.Simple)
	h.Post("/semantic", c.Semantic)
	h.Post("/hybrid", c.Hybrid)
	h.Post("/structured", c.Structured)
	h.Post("/conversational", c.Conversational)
	h.Post("/summary", c.Summary)
	h.Post("/citation", c.Citation)
	h.Post("/intelligent", c.Intelligent)
	h.Post("/batch", c.Batch)
	h.Post("/suggestions", c.Suggestions)
	h.Post("/related", c.Related)
	h.Post("/history", c.History)
}

// handleQuery parses and validates T, then runs fn. Domain failures travel
// inside the payload, so the envelope is 200 whenever fn returns no error.
func handleQuery[T any, R any](ctx *fiber.Ctx, message string, fn func(context.Context, string, *T) (R, error)) error {
	var req T
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := fn(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *queryController) Simple(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Query completed", c.service.Simple)
}

func (c *queryController) Semantic(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Semantic query completed", c.service.Semantic)
}

func (c *queryController) Hybrid(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Hybrid query completed", c.service.Hybrid)
}

func (c *queryController) Structured(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Structured query completed", c.service.Structured)
}

func (c *queryController) Conversational(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Conversational query completed", c.service.Conversational)
}

func (c *queryController) Summary(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Summary query completed", c.service.Summary)
}

func (c *queryController) Citation(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Citation query completed", c.service.Citation)
}

func (c *queryController) Intelligent(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Intelligent query completed", c.service.Intelligent)
}

func (c *queryController) Batch(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Batch query completed", c.service.Batch)
}

func (c *queryController) Suggestions(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Suggestions generated", c.service.Suggestions)
}

func (c *queryController) Related(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Related queries generated", c.service.Related)
}

func (c *queryController) History(ctx *fiber.Ctx) error {
	return handleQuery(ctx, "Query history retrieved", c.service.History)
}
