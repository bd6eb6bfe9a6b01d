package ledger

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *LedgerService) RegisterRoutes(e *echo.Echo) {
	apiGroup := e.Group("/api")

	ledgerGroup := apiGroup.Group("/ledger")

	ledgerGroup.GET("/assets/:owner", s.GetAssets)
}

func (s *LedgerService) GetAssets(c echo.Context) error {
	assets, err := s.Assets(Address(c.Param("owner")))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list assets")
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, assets)
}
