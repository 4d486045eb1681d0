package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	travel "bestoffer.kz/travel"
	"bestoffer.kz/travel/models"
)

type QuoteHandler interface {
	GetPrices(c echo.Context) error
	GetQuoteRun(c echo.Context) error
}

type quoteHandler struct {
	Travel travel.Travel
}

func NewQuoteHandler(Travel travel.Travel) QuoteHandler {
	return &quoteHandler{
		Travel: Travel,
	}
}

// quoteBody accepts age as a JSON string or number; the form sends either.
type quoteBody struct {
	Age       any    `json:"age"`
	Country   string `json:"country"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (b quoteBody) form() models.QuoteForm {
	form := models.QuoteForm{Country: b.Country, StartDate: b.StartDate, EndDate: b.EndDate}
	switch age := b.Age.(type) {
	case string:
		form.Age = age
	case float64:
		form.Age = strconv.FormatFloat(age, 'f', -1, 64)
	}
	return form
}

type quoteResponse struct {
	RunID     uuid.UUID             `json:"run_id"`
	Request   models.QuoteRequest   `json:"request"`
	Successes []models.QuoteSuccess `json:"successes"`
	Failures  []models.QuoteFailure `json:"failures"`
	Stats     models.QuoteRunStats  `json:"stats"`
}

func newQuoteResponse(run *models.QuoteRun) quoteResponse {
	return quoteResponse{
		RunID:     run.ID,
		Request:   run.Request,
		Successes: run.Successes,
		Failures:  run.Failures,
		Stats:     run.Stats(),
	}
}

// GetPrices handles POST /quotes
func (qh *quoteHandler) GetPrices(c echo.Context) error {
	var body quoteBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	run, err := qh.Travel.GetPrices(c.Request().Context(), body.form())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, newQuoteResponse(run))
}

// GetQuoteRun handles GET /quotes/:id
func (qh *quoteHandler) GetQuoteRun(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid quote run id")
	}

	run, err := qh.Travel.GetQuoteRun(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, newQuoteResponse(run))
}
