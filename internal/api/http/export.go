package httpapi

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"

	"github.com/jsierrab/aguachica-air/internal/airquality"
	"github.com/jsierrab/aguachica-air/internal/stats"
	"github.com/jsierrab/aguachica-air/internal/store"
)

// exportQuery holds query parameters for the export endpoint.
type exportQuery struct {
	Period string `validate:"oneof=24h month year"`
}

var exportPeriodDays = map[string]int{
	"24h":   1,
	"month": 30,
	"year":  365,
}

var exportHeaders = []string{
	"Timestamp", "Location ID", "Location Name", "Latitude", "Longitude",
	"AQI", "PM2.5 (µg/m³)", "PM10 (µg/m³)", "O3 (µg/m³)", "NO2 (µg/m³)",
	"Temperature (°C)", "Humidity (%)", "Pressure (hPa)", "Wind Speed (m/s)",
}

// exportHandler streams the requested period of a location's records as an
// Excel workbook with data, metadata, and statistics sheets.
func exportHandler(c *fiber.Ctx, st *store.Store) error {
	q := exportQuery{Period: c.Query("period", "24h")}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "period must be one of 24h, month, year")
	}

	locationID := c.Params("locationID")
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -exportPeriodDays[q.Period])

	records, err := st.History(c.Context(), airquality.HistoryQuery{
		LocationID: locationID,
		Start:      start,
		End:        end,
		Limit:      50000,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if len(records) == 0 {
		return c.JSON(fiber.Map{"success": false, "error": "No data available for export"})
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeDataSheet(f, records); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	writeMetadataSheet(f, records[0], q.Period, start, end, len(records))
	writeStatsSheet(f, records)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	filename := fmt.Sprintf("air_quality_%s_%s_%s.xlsx",
		locationID, q.Period, end.Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

func writeDataSheet(f *excelize.File, records []airquality.Record) error {
	const sheet = "Data"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "B", "N", 16)

	for row, rec := range records {
		values := []interface{}{
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.LocationID, rec.LocationName, rec.Lat, rec.Lon,
			cellInt(rec.AQI), cellFloat(rec.PM25), cellFloat(rec.PM10),
			cellFloat(rec.O3), cellFloat(rec.NO2),
			cellFloat(rec.Temperature), cellFloat(rec.Humidity),
			cellFloat(rec.Pressure), cellFloat(rec.WindSpeed),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMetadataSheet(f *excelize.File, first airquality.Record, period string, start, end time.Time, total int) {
	const sheet = "Metadata"
	f.NewSheet(sheet)

	rows := [][]interface{}{
		{"REPORT INFORMATION"},
		{},
		{"Location:", first.LocationName},
		{"Location ID:", first.LocationID},
		{"Latitude:", first.Lat},
		{"Longitude:", first.Lon},
		{},
		{"Period:", period},
		{"Start:", start.Format("2006-01-02 15:04:05")},
		{"End:", end.Format("2006-01-02 15:04:05")},
		{"Total records:", total},
		{},
		{"Generated:", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{},
		{"POLLUTANT REFERENCE"},
		{},
		{"AQI", "Air quality index (1-5): 1=Good, 2=Fair, 3=Moderate, 4=Poor, 5=Very poor"},
		{"PM2.5", "Fine particulate matter (≤2.5 µm). WHO 24h guideline: 15 µg/m³"},
		{"PM10", "Particulate matter (≤10 µm). WHO 24h guideline: 45 µg/m³"},
		{"NO2", "Nitrogen dioxide. WHO 24h guideline: 25 µg/m³"},
		{"O3", "Tropospheric ozone. WHO 8h guideline: 100 µg/m³"},
	}
	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(sheet, cell, v)
		}
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "4472C4"},
	})
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	f.SetCellStyle(sheet, "A15", "A15", titleStyle)
	f.SetColWidth(sheet, "A", "A", 30)
	f.SetColWidth(sheet, "B", "B", 80)
}

func writeStatsSheet(f *excelize.File, records []airquality.Record) {
	const sheet = "Statistics"
	f.NewSheet(sheet)

	var pm25, pm10, aqi []float64
	for _, rec := range records {
		if rec.PM25 != nil {
			pm25 = append(pm25, *rec.PM25)
		}
		if rec.PM10 != nil {
			pm10 = append(pm10, *rec.PM10)
		}
		if rec.AQI != nil {
			aqi = append(aqi, float64(*rec.AQI))
		}
	}

	rows := [][]interface{}{
		{"Pollutant", "Average", "Minimum", "Maximum", "Std. Deviation"},
	}
	for _, entry := range []struct {
		name   string
		values []float64
	}{
		{"PM2.5 (µg/m³)", pm25},
		{"PM10 (µg/m³)", pm10},
		{"AQI", aqi},
	} {
		if len(entry.values) == 0 {
			continue
		}
		rows = append(rows, []interface{}{
			entry.name,
			stats.Round2(stats.Mean(entry.values)),
			stats.Round2(stats.Quantile(entry.values, 0)),
			stats.Round2(stats.Quantile(entry.values, 1)),
			stats.Round2(stats.StdDev(entry.values)),
		})
	}
	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(sheet, cell, v)
		}
	}
	f.SetColWidth(sheet, "A", "E", 25)
}

func cellFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func cellInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
