package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
)

// PredictionsService is the read side consumed by the handler.
type PredictionsService interface {
	List(ctx context.Context, req models.ListPredictionsRequest) ([]models.SymbolPrediction, error)
	Get(ctx context.Context, symbol string) (models.SymbolPrediction, error)
	Stats(ctx context.Context) (models.PredictionStats, error)
	Sectors(ctx context.Context) ([]string, error)
	Refresh(ctx context.Context, req models.RefreshRequest) (string, error)
}

// PredictionsEchoHandler serves /api/predictions.
type PredictionsEchoHandler struct {
	logger *xlogger.Logger
	svc    PredictionsService
}

func NewPredictionsEchoHandler(logger *xlogger.Logger, svc PredictionsService) *PredictionsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PredictionsEchoHandler{logger: logger.Component("predictions_api"), svc: svc}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/predictions")
	g.GET("", h.List)
	g.GET("/stats/summary", h.Stats)
	g.GET("/filters/sectors", h.Sectors)
	g.POST("/refresh", h.Refresh)
	g.GET("/:symbol", h.Get)
}

func (h *PredictionsEchoHandler) List(c echo.Context) error {
	req := &models.ListPredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.svc.List(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "list", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PredictionsEchoHandler) Get(c echo.Context) error {
	req := &models.PredictionDetailRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Get(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "get", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsEchoHandler) Stats(c echo.Context) error {
	res, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return h.fail(c, "stats", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsEchoHandler) Sectors(c echo.Context) error {
	res, err := h.svc.Sectors(c.Request().Context())
	if err != nil {
		return h.fail(c, "sectors", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsEchoHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id, err := h.svc.Refresh(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return xhttp.AcceptedResponse(c, map[string]string{"job_id": id})
}

// fail maps use case errors onto API errors. Unknown errors are logged and become a 500.
func (h *PredictionsEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no predictions for %s", c.Param("symbol")))
	case errors.Is(err, usecase.ErrQueueDisabled):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("refresh queue is disabled"))
	}
	h.logger.Error(op+" predictions failed", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load predictions").WithError(err))
}
