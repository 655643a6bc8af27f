// Package job orchestrates a single device's poll invocation: selecting the
// sensors due this firing, opening one SNMP session, running each sensor
// through the poll/convert/evaluate pipeline, and posting the combined
// results back to the backend in one request.
package job

import (
	"context"
	"log/slog"

	"github.com/gosnmp/gosnmp"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/backend"
	"github.com/gralabs/snmpworker/pkg/snmpworker/counterstore"
	"github.com/gralabs/snmpworker/pkg/snmpworker/pipeline"
	"github.com/gralabs/snmpworker/pkg/snmpworker/poller"
)

// Runner executes device jobs. It is constructed once and shared across
// every firing; all state it touches (the counter store, the backend
// client) is itself safe for concurrent use.
type Runner struct {
	poller  *poller.Poller
	store   counterstore.Store
	backend *backend.Client
	log     *slog.Logger

	// nowFunc returns the current Unix time in fractional seconds. Tests
	// override it; production uses time.Now.
	nowFunc func() float64
}

// NewRunner builds a Runner from its collaborators.
func NewRunner(p *poller.Poller, store counterstore.Store, client *backend.Client, log *slog.Logger, nowFunc func() float64) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{poller: p, store: store, backend: client, log: log, nowFunc: nowFunc}
}

// Run polls every sensor in payload whose interval is in affecting,
// converts and evaluates each, and posts the combined samples for the
// device in a single request. A sensor whose poll, counter conversion, or
// expression evaluation fails is logged and skipped; it does not prevent
// its siblings from reporting. A failure to open the SNMP session fails
// the whole job.
func (r *Runner) Run(ctx context.Context, payload models.JobPayload, affecting models.AffectingIntervals) error {
	active := selectActiveSensors(payload.Sensors, affecting)
	if len(active) == 0 {
		return nil
	}

	session, err := poller.NewSession(payload.IPv4, payload.Credential)
	if err != nil {
		return err
	}
	defer func() {
		if session.Conn != nil {
			_ = session.Conn.Close()
		}
	}()

	now := r.nowFunc()
	pl := pipeline.New(r.log)

	var allSamples []models.Sample
	for _, sensor := range active {
		samples, err := r.runSensor(payload.EntityID, session, sensor, pl, now)
		if err != nil {
			r.log.Warn("sensor failed, skipping", "entity_id", payload.EntityID, "sensor_id", sensor.SensorID, "err", err)
			continue
		}
		allSamples = append(allSamples, samples...)
	}

	return r.backend.PostValues(ctx, payload.AccountID, allSamples)
}

func (r *Runner) runSensor(entityID int64, session *gosnmp.GoSNMP, sensor models.Sensor, pl *pipeline.Pipeline, now float64) ([]models.Sample, error) {
	raw, err := r.poller.Poll(session, sensor.OIDs)
	if err != nil {
		return nil, err
	}

	converted, err := pipeline.ConvertCounters(raw, entityID, sensor.SensorID, r.store, now, r.log)
	if err != nil {
		return nil, err
	}

	expr, err := pipeline.CompileExpression(sensor.Expression)
	if err != nil {
		return nil, err
	}

	return pl.Run(sensor, converted, expr)
}

// selectActiveSensors returns the sensors whose interval is in affecting,
// preserving order.
func selectActiveSensors(sensors []models.Sensor, affecting models.AffectingIntervals) []models.Sensor {
	var out []models.Sensor
	for _, s := range sensors {
		if affecting.Contains(s.IntervalSeconds) {
			out = append(out, s)
		}
	}
	return out
}
