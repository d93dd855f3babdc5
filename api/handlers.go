package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/domain"
	"github.com/Varun-CA-08/Airline/fanout"
	"github.com/Varun-CA-08/Airline/storage"
)

const requestBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, mut Mutator, store Reader, cache Cache, hub *fanout.Hub, auth *Auth, logger *log.Logger) {
	anyRole := requireRole(auth)
	flightWriters := requireRole(auth, domain.RoleAdmin, domain.RoleAirline)
	baggageWriters := requireRole(auth, domain.RoleAdmin, domain.RoleBaggage)
	adminOnly := requireRole(auth, domain.RoleAdmin)

	e.GET("/api/flights", listFlights(store), anyRole)
	e.GET("/api/flights/:id", getFlight(store), anyRole)
	e.POST("/api/flights", createFlight(mut, logger), flightWriters)
	e.PATCH("/api/flights/:id", updateFlight(mut, logger), flightWriters)
	e.DELETE("/api/flights/:id", deleteFlight(mut, logger), adminOnly)

	e.GET("/api/baggage", listBaggage(store), anyRole)
	e.GET("/api/baggage/:id", getBaggage(store), anyRole)
	e.POST("/api/baggage", createBaggage(mut, logger), baggageWriters)
	e.PATCH("/api/baggage/:id", updateBaggage(mut, logger), baggageWriters)
	e.DELETE("/api/baggage/:id", deleteBaggage(mut, logger), baggageWriters)

	e.POST("/api/operations/flights/:id/delay", delayFlight(mut, logger), flightWriters)
	e.GET("/api/operations/analytics", getAnalytics(store, cache), flightWriters)
	e.GET("/api/dashboard/overview", getOverview(store), anyRole)

	e.GET("/api/stream", streamNotifications(hub), anyRole)
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func listFlights(store Reader) echo.HandlerFunc {
	return func(c echo.Context) error {
		flights, err := store.ListFlights(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list flights"})
		}
		return c.JSON(http.StatusOK, flights)
	}
}

func getFlight(store Reader) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, err := store.GetFlight(c.Request().Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "flight not found"})
		}
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to fetch flight"})
		}
		return c.JSON(http.StatusOK, f)
	}
}

func createFlight(mut Mutator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMutationRequestMetrics(logger, "/api/flights")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		decodeStart := time.Now()
		var req createFlightRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		metrics.ObserveDecode(time.Since(decodeStart))

		if req.FlightNo == "" || req.Origin == "" || req.Destination == "" {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "flightNo, origin and destination are required"})
			return err
		}
		if req.Status == "" {
			req.Status = domain.FlightScheduled
		}
		if !domain.ValidFlightStatus(req.Status) {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status"})
			return err
		}

		f := domain.Flight{
			FlightNo:     req.FlightNo,
			Origin:       req.Origin,
			Destination:  req.Destination,
			Status:       req.Status,
			Gate:         req.Gate,
			ScheduledDep: req.ScheduledDep,
			ScheduledArr: req.ScheduledArr,
		}
		if claims := claimsFrom(c); claims != nil {
			f.CreatedBy = claims.Subject
		}

		mutateStart := time.Now()
		created, mutErr := mut.CreateFlight(c.Request().Context(), f)
		metrics.ObserveMutate(time.Since(mutateStart))
		if mutErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(mutErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to create flight"})
			return err
		}
		err = c.JSON(http.StatusCreated, created)
		return err
	}
}

func updateFlight(mut Mutator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMutationRequestMetrics(logger, "/api/flights/:id")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req updateFlightRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		if req.Status != nil && !domain.ValidFlightStatus(*req.Status) {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status"})
			return err
		}
		ch := domain.FlightChanges{
			Status:       req.Status,
			Gate:         req.Gate,
			ScheduledDep: req.ScheduledDep,
			ScheduledArr: req.ScheduledArr,
		}
		if ch.Empty() {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "no updatable fields provided"})
			return err
		}

		mutateStart := time.Now()
		updated, mutErr := mut.UpdateFlight(c.Request().Context(), c.Param("id"), ch)
		metrics.ObserveMutate(time.Since(mutateStart))
		if errors.Is(mutErr, storage.ErrNotFound) {
			metrics.SetErrorStage("not_found")
			err = c.JSON(http.StatusNotFound, errorResponse{Error: "flight not found"})
			return err
		}
		if mutErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(mutErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to update flight"})
			return err
		}
		err = c.JSON(http.StatusOK, updated)
		return err
	}
}

func deleteFlight(mut Mutator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMutationRequestMetrics(logger, "/api/flights/:id")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		mutateStart := time.Now()
		_, mutErr := mut.DeleteFlight(c.Request().Context(), c.Param("id"))
		metrics.ObserveMutate(time.Since(mutateStart))
		if errors.Is(mutErr, storage.ErrNotFound) {
			metrics.SetErrorStage("not_found")
			err = c.JSON(http.StatusNotFound, errorResponse{Error: "flight not found"})
			return err
		}
		if mutErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(mutErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to delete flight"})
			return err
		}
		err = c.NoContent(http.StatusNoContent)
		return err
	}
}

func delayFlight(mut Mutator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMutationRequestMetrics(logger, "/api/operations/flights/:id/delay")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req delayFlightRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		if req.Reason == "" {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "reason is required"})
			return err
		}

		mutateStart := time.Now()
		delayed, mutErr := mut.DelayFlight(c.Request().Context(), c.Param("id"), req.Reason, req.NewTime)
		metrics.ObserveMutate(time.Since(mutateStart))
		if errors.Is(mutErr, storage.ErrNotFound) {
			metrics.SetErrorStage("not_found")
			err = c.JSON(http.StatusNotFound, errorResponse{Error: "flight not found"})
			return err
		}
		if mutErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(mutErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to delay flight"})
			return err
		}
		err = c.JSON(http.StatusOK, delayed)
		return err
	}
}

func listBaggage(store Reader) echo.HandlerFunc {
	return func(c echo.Context) error {
		bags, err := store.ListBaggage(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list baggage"})
		}
		return c.JSON(http.StatusOK, bags)
	}
}

func getBaggage(store Reader) echo.HandlerFunc {
	return func(c echo.Context) error {
		b, err := store.GetBaggage(c.Request().Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "baggage not found"})
		}
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to fetch baggage"})
		}
		return c.JSON(http.StatusOK, b)
	}
}

func createBaggage(mut Mutator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMutationRequestMetrics(logger, "/api/baggage")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req createBaggageRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		if req.TagID == "" || req.FlightNo == "" {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "tagId and flightNo are required"})
			return err
		}
		if req.Status == "" {
			req.Status = domain.BaggageCheckin
		}
		if !domain.ValidBaggageStatus(req.Status) {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status"})
			return err
		}

		mutateStart := time.Now()
		created, mutErr := mut.CreateBaggage(c.Request().Context(), domain.Baggage{
			TagID:    req.TagID,
			FlightID: req.FlightID,
			FlightNo: req.FlightNo,
			Status:   req.Status,
			Location: req.Location,
		})
		metrics.ObserveMutate(time.Since(mutateStart))
		if mutErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(mutErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to create baggage"})
			return err
		}
		err = c.JSON(http.StatusCreated, created)
		return err
	}
}

func updateBaggage(mut Mutator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMutationRequestMetrics(logger, "/api/baggage/:id")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req updateBaggageRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		if req.Status != nil && !domain.ValidBaggageStatus(*req.Status) {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status"})
			return err
		}
		ch := domain.BaggageChanges{Status: req.Status, Location: req.Location}
		if ch.Empty() {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "no updatable fields provided"})
			return err
		}

		mutateStart := time.Now()
		updated, mutErr := mut.UpdateBaggage(c.Request().Context(), c.Param("id"), ch)
		metrics.ObserveMutate(time.Since(mutateStart))
		if errors.Is(mutErr, storage.ErrNotFound) {
			metrics.SetErrorStage("not_found")
			err = c.JSON(http.StatusNotFound, errorResponse{Error: "baggage not found"})
			return err
		}
		if mutErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(mutErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to update baggage"})
			return err
		}
		err = c.JSON(http.StatusOK, updated)
		return err
	}
}

func deleteBaggage(mut Mutator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newMutationRequestMetrics(logger, "/api/baggage/:id")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		mutateStart := time.Now()
		_, mutErr := mut.DeleteBaggage(c.Request().Context(), c.Param("id"))
		metrics.ObserveMutate(time.Since(mutateStart))
		if errors.Is(mutErr, storage.ErrNotFound) {
			metrics.SetErrorStage("not_found")
			err = c.JSON(http.StatusNotFound, errorResponse{Error: "baggage not found"})
			return err
		}
		if mutErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(mutErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to delete baggage"})
			return err
		}
		err = c.NoContent(http.StatusNoContent)
		return err
	}
}

// getAnalytics serves today's aggregate through the cache-aside accessor.
// The response names its source so cache behavior stays observable.
func getAnalytics(store Reader, cache Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		key := storage.AnalyticsKey("today")

		if raw, ok := cache.Get(ctx, key); ok {
			var snap domain.AnalyticsSnapshot
			if err := sonic.Unmarshal(raw, &snap); err == nil {
				return c.JSON(http.StatusOK, analyticsResponse{Source: "redis", Data: snap})
			}
			// Unreadable entry: fall through to the store.
		}

		snap, err := store.AnalyticsToday(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to compute analytics"})
		}
		if data, err := sonic.Marshal(snap); err == nil {
			cache.Put(ctx, key, data, storage.DefaultTTL)
		}
		return c.JSON(http.StatusOK, analyticsResponse{Source: "mongodb", Data: snap})
	}
}

func getOverview(store Reader) echo.HandlerFunc {
	return func(c echo.Context) error {
		ov, err := store.Overview(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to build overview"})
		}
		return c.JSON(http.StatusOK, ov)
	}
}
