// Package cyclelog appends one tabular row per completed pump cycle to a
// CSV file, for eyeballing in a spreadsheet. The column set is fixed;
// the header is written once when the file is first created.
package cyclelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/models"
)

// The plug reports voltage per sample but the log keeps the original
// fixed-mains convention: current derived from average power at 240V.
const nominalVoltage = 240.0

var header = []string{
	"Timestamp", "Date", "Time", "Event",
	"Power_W", "Current_A", "Voltage_V", "Relay_State",
	"Pump_Working", "Runtime_Sec", "Daily_Cycles", "Daily_Runtime_Sec",
	"Notes",
}

type Writer struct {
	path   string
	logger *logrus.Logger
}

func NewWriter(path string, logger *logrus.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Append writes one CYCLE_COMPLETE row. worked reports whether the cycle
// cleared the minimum working-time bar.
func (w *Writer) Append(rec models.CycleRecord, worked bool) error {
	_, statErr := os.Stat(w.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open cycle log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write cycle log header: %w", err)
		}
	}

	workedCol := "NO"
	if worked {
		workedCol = "YES"
	}

	notes := fmt.Sprintf("Next wait: %dmin, Weather: %s, Max power: %.0fW",
		rec.NextOffTimeS/60, rec.Weather, rec.MaxPowerW)

	row := []string{
		rec.Time.Format("2006-01-02T15:04:05"),
		rec.Time.Format("2006-01-02"),
		rec.Time.Format("15:04:05"),
		"CYCLE_COMPLETE",
		strconv.FormatFloat(rec.AvgPowerW, 'f', 1, 64),
		strconv.FormatFloat(rec.AvgPowerW/nominalVoltage, 'f', 2, 64),
		strconv.FormatFloat(nominalVoltage, 'f', 0, 64),
		"OFF",
		workedCol,
		strconv.FormatFloat(rec.WorkingTimeS, 'f', 1, 64),
		strconv.Itoa(rec.DailyCycles),
		strconv.FormatFloat(rec.DailyRunS, 'f', 1, 64),
		notes,
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("failed to write cycle log row: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush cycle log: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"working_time": rec.WorkingTimeS,
		"next_wait":    rec.NextOffTimeS,
	}).Info("Cycle logged")
	return nil
}
