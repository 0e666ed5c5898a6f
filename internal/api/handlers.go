package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/errs"
)

func httpStatus(err error) int {
	switch errs.KindOf(err) {
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindBusiness:
		return http.StatusUnprocessableEntity
	case errs.KindData:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func fail(c echo.Context, err error) error {
	return c.JSON(httpStatus(err), map[string]string{"error": err.Error()})
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (s *Server) listFilings(c echo.Context) error {
	filings, err := s.reader.ListActive(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}

	now := s.clk.Now()
	summaries := make([]*domain.FilingSummary, 0, len(filings))
	for _, f := range filings {
		summaries = append(summaries, f.ToSummary(now))
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) getFiling(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	f, err := s.reader.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) submitForReview(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Narrative string `json:"narrative"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	f, err := s.filings.SubmitForReview(c.Request().Context(), id, req.Narrative)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) approveFiling(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	f, err := s.filings.Approve(c.Request().Context(), id, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) scheduleFiling(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		At time.Time `json:"at"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.At.IsZero() {
		req.At = s.clk.Now()
	}
	f, err := s.filings.Schedule(c.Request().Context(), id, req.At)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) attemptFiling(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.filings.AttemptFiling(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	f, err := s.reader.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) listQueue(c echo.Context) error {
	items, err := s.queue.ListOpen(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) assignItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Officer string `json:"officer"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Officer == "" {
		req.Officer = actor(c)
	}
	item, err := s.queue.Assign(c.Request().Context(), id, req.Officer)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) startItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	item, err := s.queue.Start(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) completeItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	item, err := s.queue.Complete(c.Request().Context(), id, actor(c), req.Resolution)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) escalateItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	item, err := s.queue.Escalate(c.Request().Context(), id, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) cancelItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	item, err := s.queue.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) scoreTransaction(c echo.Context) error {
	var tx domain.Transaction
	if err := c.Bind(&tx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if tx.ID == uuid.Nil || tx.UserID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction id and user id are required")
	}

	assessment, err := s.risk.ScoreTransaction(c.Request().Context(), &tx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, assessment)
}

func (s *Server) complianceReport(c echo.Context) error {
	period := 24 * time.Hour
	if raw := c.QueryParam("period"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid period")
		}
		period = parsed
	}
	report, err := s.filings.GenerateReport(c.Request().Context(), period)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
