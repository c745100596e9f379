// Package httpapi wires the read-only query endpoints into the Fiber app.
// The endpoints are thin projections over the record store; all write paths
// run through the collector.
package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jsierrab/aguachica-air/internal/airquality"
	"github.com/jsierrab/aguachica-air/internal/stats"
	"github.com/jsierrab/aguachica-air/internal/store"
)

var validate = validator.New()

// ErrorHandler renders route errors in the API's response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, st *store.Store) {
	api := app.Group("/api")

	api.Get("/current/:locationID", func(c *fiber.Ctx) error {
		rec, err := st.Latest(c.Context(), c.Params("locationID"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(fiber.Map{"success": false, "error": "No data found"})
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "data": rec})
	})

	api.Get("/historical/:locationID", func(c *fiber.Ctx) error {
		var req historicalQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		end := time.Now().UTC()
		start := end.AddDate(0, 0, -req.Days)

		records, err := st.History(c.Context(), airquality.HistoryQuery{
			LocationID: c.Params("locationID"),
			Start:      start,
			End:        end,
			Limit:      req.Limit,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "data": records, "count": len(records)})
	})

	api.Get("/monthly-stats/:locationID/:year/:month", func(c *fiber.Ctx) error {
		year, _ := c.ParamsInt("year")
		month, _ := c.ParamsInt("month")
		if year <= 0 || month < 1 || month > 12 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid year or month")
		}

		monthlyStats, err := st.MonthlyStatistics(c.Context(), c.Params("locationID"), year, month)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(fiber.Map{"success": false, "error": "No data for this month"})
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "data": monthlyStats})
	})

	api.Get("/boxplot-data/:locationID/:year", func(c *fiber.Ctx) error {
		year, _ := c.ParamsInt("year")
		if year <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid year")
		}
		data, err := boxplotData(c, st, c.Params("locationID"), year)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "data": data})
	})

	api.Get("/locations", func(c *fiber.Ctx) error {
		locations, err := st.Locations(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "data": locations})
	})

	api.Get("/status", func(c *fiber.Ctx) error {
		status, err := st.Status(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "data": status})
	})

	api.Get("/trends/:locationID", func(c *fiber.Ctx) error {
		trends, err := st.Trends(c.Context(), c.Params("locationID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if trends.Empty() {
			return c.JSON(fiber.Map{"success": false, "error": "not_enough_data"})
		}
		return c.JSON(fiber.Map{
			"success":             true,
			"pm25_24h":            trends.PM25Series,
			"pm10_24h":            trends.PM10Series,
			"aqi_distribution_7d": trends.AQIDistribution,
		})
	})

	api.Get("/export/:locationID", func(c *fiber.Ctx) error {
		return exportHandler(c, st)
	})
}

// historicalQuery holds query parameters for the historical endpoint.
type historicalQuery struct {
	Days  int `validate:"gte=1,lte=365"`
	Limit int `validate:"gte=1,lte=50000"`
}

func (q *historicalQuery) bind(c *fiber.Ctx) error {
	q.Days = c.QueryInt("days", 7)
	q.Limit = c.QueryInt("limit", 100)
	return validate.Struct(q)
}

// minMonthlyRows is the floor below which a month is excluded from boxplots.
const minMonthlyRows = 10

// monthBoxplot is one month's worth of quartile summaries.
type monthBoxplot struct {
	Month       string           `json:"month"`
	MonthNumber int              `json:"month_number"`
	PM25        stats.FiveNumber `json:"pm25"`
	PM10        stats.FiveNumber `json:"pm10"`
	DataCount   int              `json:"data_count"`
}

func boxplotData(c *fiber.Ctx, st *store.Store, locationID string, year int) ([]monthBoxplot, error) {
	lastMonth := 12
	now := time.Now().UTC()
	if year >= now.Year() {
		lastMonth = int(now.Month()) - 1
	}

	data := make([]monthBoxplot, 0, lastMonth)
	for month := 1; month <= lastMonth; month++ {
		monthly, err := st.MonthlyStatistics(c.Context(), locationID, year, month)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if monthly.Count < minMonthlyRows {
			continue
		}

		pm25, pm10, err := st.MonthlyValues(c.Context(), locationID, year, month)
		if err != nil {
			return nil, err
		}
		if len(pm25) == 0 || len(pm10) == 0 {
			continue
		}

		data = append(data, monthBoxplot{
			Month:       time.Month(month).String(),
			MonthNumber: month,
			PM25:        stats.Summarize(pm25),
			PM10:        stats.Summarize(pm10),
			DataCount:   monthly.Count,
		})
	}
	return data, nil
}
