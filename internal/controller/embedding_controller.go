package controller

import (
	"ai-knowledge-be/internal/dto"
	"ai-knowledge-be/internal/pkg/serverutils"
	"ai-knowledge-be/internal/service"
	"ai-knowledge-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type IEmbeddingController interface {
	RegisterRoutes(r fiber.Router)
	Process(ctx *fiber.Ctx) error
	Batch(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	DeleteDocument(ctx *fiber.Ctx) error
	Check(ctx *fiber.Ctx) error
	SupportedTypes(ctx *fiber.Ctx) error
	SupportedModels(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type embeddingController struct {
	service   service.IEmbeddingService
	jwtSecret string
}

func NewEmbeddingController(service service.IEmbeddingService, jwtSecret string) IEmbeddingController {
	return &embeddingController{service: service, jwtSecret: jwtSecret}
}

func (c *embeddingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/embedding")
	h.Use(serverutils.OptionalJwtMiddleware(c.jwtSecret))
	h.Post("/process", c.Process)
	h.Post("/batch", c.Batch)
	h.Get("/status/:taskId", c.Status)
	h.Delete("/cancel/:taskId", c.Cancel)
	h.Post("/retry/:taskId", c.Retry)
	h.Delete("/document/:fileId", c.DeleteDocument)
	h.Get("/check/:fileId", c.Check)
	h.Get("/supported-types", c.SupportedTypes)
	h.Get("/supported-models", c.SupportedModels)
	h.Get("/stats", c.Stats)
}

func (c *embeddingController) Process(ctx *fiber.Ctx) error {
	var req dto.ProcessEmbeddingRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Process(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Embedding task submitted", res))
}

func (c *embeddingController) Batch(ctx *fiber.Ctx) error {
	var req dto.BatchEmbeddingRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Batch(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Batch embedding submitted", res))
}

func (c *embeddingController) Status(ctx *fiber.Ctx) error {
	res, err := c.service.Status(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("taskId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get embedding status", res))
}

func (c *embeddingController) Cancel(ctx *fiber.Ctx) error {
	res, err := c.service.Cancel(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("taskId"))
	if err != nil {
		return err
	}

	message := "Embedding task cancelled"
	if !res.Cancelled {
		message = "Embedding task is not running"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *embeddingController) Retry(ctx *fiber.Ctx) error {
	res, err := c.service.Retry(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("taskId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Embedding task resubmitted", res))
}

func (c *embeddingController) DeleteDocument(ctx *fiber.Ctx) error {
	res, err := c.service.DeleteDocument(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("fileId"), ctx.Query("knowledgeBaseId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Document embeddings deleted", res))
}

func (c *embeddingController) Check(ctx *fiber.Ctx) error {
	res, err := c.service.Check(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("fileId"), ctx.Query("knowledgeBaseId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success check document", res))
}

func (c *embeddingController) SupportedTypes(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get supported types", c.service.SupportedTypes()))
}

func (c *embeddingController) SupportedModels(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get supported models", c.service.SupportedModels()))
}

func (c *embeddingController) Stats(ctx *fiber.Ctx) error {
	res, err := c.service.Stats(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get embedding stats", res))
}

// parseBody reports malformed JSON as a validation failure.
func parseBody(ctx *fiber.Ctx, out interface{}) error {
	if err := ctx.BodyParser(out); err != nil {
		return apperror.Wrap(apperror.KindValidation, "request.body", err)
	}
	return nil
}
