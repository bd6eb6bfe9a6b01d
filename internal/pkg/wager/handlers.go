package wager

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vreid/duel/internal/pkg/ledger"

	log "github.com/sirupsen/logrus"
)

// CallerHeader names the authenticated caller. Whatever sits in front of the
// service is responsible for setting it.
const CallerHeader = "X-Duel-Caller"

const callerKey = "caller"

var ledgerErrors = []error{
	ledger.ErrAssetNotFound,
	ledger.ErrNotOwner,
	ledger.ErrUnauthorized,
	ledger.ErrReceiptDisabled,
	ledger.ErrInvalidQuantity,
}

func (s *WagerService) RegisterRoutes(e *echo.Echo) {
	apiGroup := e.Group("/api")

	wagerGroup := apiGroup.Group("/wager", requireCaller)

	wagerGroup.POST("/games", s.PostInitialize)
	wagerGroup.POST("/games/cancel", s.PostCancel)
	wagerGroup.POST("/games/play", s.PostPlay)
	wagerGroup.POST("/games/:creator/join", s.PostJoin)
	wagerGroup.POST("/games/:creator/claim", s.PostClaim)
	wagerGroup.GET("/games/:creator", s.GetGame)
}

func requireCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		caller := c.Request().Header.Get(CallerHeader)
		if caller == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing "+CallerHeader)
		}

		c.Set(callerKey, ledger.Address(caller))

		return next(c)
	}
}

func callerOf(c echo.Context) ledger.Address {
	caller, _ := c.Get(callerKey).(ledger.Address)

	return caller
}

func (s *WagerService) PostInitialize(c echo.Context) error {
	var args InitializeArgs

	err := c.Bind(&args)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	game, err := s.Initialize(callerOf(c), args)
	if err != nil {
		return respondError(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusCreated, game)
}

func (s *WagerService) PostCancel(c echo.Context) error {
	game, err := s.Cancel(callerOf(c))
	if err != nil {
		return respondError(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, game)
}

func (s *WagerService) PostJoin(c echo.Context) error {
	var args JoinArgs

	err := c.Bind(&args)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	game, err := s.Join(callerOf(c), ledger.Address(c.Param("creator")), args)
	if err != nil {
		return respondError(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, game)
}

func (s *WagerService) PostPlay(c echo.Context) error {
	var args PlayArgs

	err := c.Bind(&args)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	game, err := s.Play(callerOf(c), args)
	if err != nil {
		return respondError(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, game)
}

func (s *WagerService) PostClaim(c echo.Context) error {
	game, err := s.Claim(callerOf(c), ledger.Address(c.Param("creator")))
	if err != nil {
		return respondError(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, game)
}

func (s *WagerService) GetGame(c echo.Context) error {
	game, err := s.Game(ledger.Address(c.Param("creator")))
	if err != nil {
		return respondError(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, game)
}

func respondError(c echo.Context, err error) error {
	var coded *Error
	if errors.As(err, &coded) {
		//nolint:wrapcheck
		return c.JSON(coded.Code().Status, ErrorResponse{
			Code:    coded.Code().Name,
			Kind:    coded.Code().Kind,
			Message: err.Error(),
		})
	}

	for _, target := range ledgerErrors {
		if errors.Is(err, target) {
			//nolint:wrapcheck
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Code:    "ledger-rejected",
				Kind:    "LedgerError",
				Message: err.Error(),
			})
		}
	}

	log.WithField("path", c.Path()).WithError(err).Error("request failed")

	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
