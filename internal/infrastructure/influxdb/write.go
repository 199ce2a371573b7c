package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sqlgw/internal/infrastructure/database"
)

// Statement metric layout.
const (
	// StatementMeasurement is the measurement every gateway statement is written to.
	StatementMeasurement = "sqlgw_statement"

	statusOK    = "ok"
	statusError = "error"
)

// ObserveStatement records one gateway statement. It implements
// database.Observer, so a connected Client can be passed to DB.SetObserver.
//
// The point carries tags op and status (ok or error) and fields duration_ms
// and rows. The SQL text is not written; it would make every statement a new
// series. The write is non-blocking.
func (c *Client) ObserveStatement(ev database.StatementEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statementPoint(ev, time.Now()))
}

// statementPoint builds the point for ev at ts.
func statementPoint(ev database.StatementEvent, ts time.Time) *write.Point {
	status := statusOK
	if ev.Err != nil {
		status = statusError
	}

	return write.NewPoint(
		StatementMeasurement,
		map[string]string{
			"op":     ev.Op,
			"status": status,
		},
		map[string]interface{}{
			"duration_ms": float64(ev.Duration) / float64(time.Millisecond),
			"rows":        ev.Rows,
		},
		ts,
	)
}
