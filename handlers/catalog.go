package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	travel "bestoffer.kz/travel"
)

type CatalogHandler interface {
	ListCountries(c echo.Context) error
	ListProviders(c echo.Context) error
}

type catalogHandler struct {
	Travel travel.Travel
}

func NewCatalogHandler(Travel travel.Travel) CatalogHandler {
	return &catalogHandler{
		Travel: Travel,
	}
}

// ListCountries handles GET /countries
func (ch *catalogHandler) ListCountries(c echo.Context) error {
	return c.JSON(http.StatusOK, ch.Travel.Countries())
}

// ListProviders handles GET /providers
func (ch *catalogHandler) ListProviders(c echo.Context) error {
	providers := ch.Travel.Providers()
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name)
	}
	return c.JSON(http.StatusOK, names)
}
