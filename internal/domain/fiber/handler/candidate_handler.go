package handler

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
	"github.com/fadilmartias/resume-screener/internal/dto"
	"github.com/fadilmartias/resume-screener/internal/middleware"
	"github.com/fadilmartias/resume-screener/internal/response"
	"github.com/fadilmartias/resume-screener/internal/usecase"
	"github.com/fadilmartias/resume-screener/internal/util"
)

const maxUploadBytes = 5 * 1024 * 1024

type CandidateHandler struct {
	ingestion  *usecase.IngestionUsecase
	screening  *usecase.ScreeningUsecase
	candidates *usecase.CandidateUsecase
}

func NewCandidateHandler(ingestion *usecase.IngestionUsecase, screening *usecase.ScreeningUsecase, candidates *usecase.CandidateUsecase) *CandidateHandler {
	return &CandidateHandler{ingestion: ingestion, screening: screening, candidates: candidates}
}

func (h *CandidateHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/candidates/upload", middleware.RateLimiter(5, 10*time.Second), h.Upload)
	app.Post("/ingest/mailbox", middleware.RateLimiter(1, 30*time.Second), h.IngestMailbox)
	app.Post("/screening", middleware.RateLimiter(1, 10*time.Second), h.Screening)
	app.Get("/candidates", h.List)
	app.Get("/candidates/:id", h.Detail)
	app.Get("/candidates/:id/similar", h.Similar)
}

func (h *CandidateHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("resume")
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "resume file is required",
		}, err)
	}
	if file.Size > maxUploadBytes {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "resume file is too large (max 5MB)",
		}, nil)
	}

	f, err := file.Open()
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "cannot read resume file",
		}, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "cannot read resume file",
		}, err)
	}

	mediaType := file.Header.Get("Content-Type")
	candidate, err := h.ingestion.IngestUpload(c.Context(), data, mediaType, file.Filename)
	if err != nil {
		code := fiber.StatusInternalServerError
		if apperrors.IsKind(err, apperrors.KindNormalization) {
			code = fiber.StatusUnprocessableEntity
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    code,
			Message: "failed to process resume",
		}, err)
	}
	if candidate == nil {
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Code:    fiber.StatusOK,
			Message: "resume needs manual review",
			Data:    fiber.Map{"needs_review": true},
		})
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "candidate created",
		Data:    dto.NewCandidateDTO(candidate),
	})
}

func (h *CandidateHandler) IngestMailbox(c *fiber.Ctx) error {
	report, err := h.ingestion.RunMailbox(c.Context(), c.QueryInt("limit", 20))
	if err != nil {
		code := fiber.StatusInternalServerError
		switch {
		case apperrors.IsKind(err, apperrors.KindAuth):
			code = fiber.StatusUnauthorized
		case apperrors.IsKind(err, apperrors.KindConnection):
			code = fiber.StatusBadGateway
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    code,
			Message: "mailbox ingestion failed",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "mailbox ingestion finished",
		Data:    report,
	})
}

func (h *CandidateHandler) Screening(c *fiber.Ctx) error {
	var req dto.ScreeningRequest
	if err := c.BodyParser(&req); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid screening request",
		}, err)
	}
	job, err := req.ToJob()
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: err.Error(),
		}, err)
	}

	report, err := h.screening.Run(c.Context(), job)
	if err != nil {
		code := fiber.StatusInternalServerError
		if apperrors.IsKind(err, apperrors.KindConfiguration) {
			code = fiber.StatusPreconditionFailed
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    code,
			Message: "screening job failed",
			Details: report,
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "screening job finished",
		Data:    report,
	})
}

func (h *CandidateHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)

	candidates, total, err := h.candidates.GetCandidates(page, pageSize)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to list candidates",
		}, err)
	}

	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "candidates",
		Data:    dto.NewCandidateDTOs(candidates),
		Pagination: &response.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			TotalItems: total,
			HasMore:    int64(page) < totalPages,
			From:       (page-1)*pageSize + 1,
			To:         (page-1)*pageSize + len(candidates),
		},
	})
}

func (h *CandidateHandler) Detail(c *fiber.Ctx) error {
	candidate, err := h.candidates.GetCandidate(c.Params("id"))
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusNotFound,
			Message: "candidate not found",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "candidate",
		Data:    dto.NewCandidateDTO(candidate),
	})
}

func (h *CandidateHandler) Similar(c *fiber.Ctx) error {
	similar, err := h.candidates.SimilarCandidates(c.Context(), c.Params("id"), c.QueryInt("top_k", 5))
	if err != nil {
		code := fiber.StatusInternalServerError
		if apperrors.IsKind(err, apperrors.KindConfiguration) {
			code = fiber.StatusPreconditionFailed
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    code,
			Message: "similarity search failed",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "similar candidates",
		Data:    dto.NewCandidateDTOs(similar),
	})
}
