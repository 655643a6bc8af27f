// Package pipeline turns a poll result into the flat list of path/value
// samples sent to the backend: it builds output paths from templates,
// evaluates sensor expressions per walked index, and (via ConvertCounters)
// turns raw COUNTER/COUNTER64 readings into per-second rates first.
package pipeline

import (
	"log/slog"

	"github.com/gralabs/snmpworker/models"
)

// dummyGetIndex is substituted for {$index} when every OID in a sensor was
// fetched with GET rather than WALK, matching the all-get regime's single
// synthetic index.
const dummyGetIndex = "0"

// Pipeline evaluates one sensor's converted poll result into output samples.
type Pipeline struct {
	log *slog.Logger
}

// New returns a Pipeline that logs dropped samples to log.
func New(log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{log: log}
}

// Run evaluates sensor's expression against converted (already
// counter-converted) poll result entries and returns the resulting samples.
// A malformed output path or a missing value for one index drops only that
// index's sample; it never fails the whole sensor.
func (p *Pipeline) Run(sensor models.Sensor, converted models.PollResult, expression *Expression) ([]models.Sample, error) {
	if err := ValidateOutputPathTemplate(sensor.OutputPathTemplate); err != nil {
		p.log.Warn("output path skipped sensor samples", "sensor_id", sensor.SensorID, "err", err)
		return nil, nil
	}

	anyWalk := false
	for _, e := range converted {
		if e.IsWalk() {
			anyWalk = true
			break
		}
	}

	if !anyWalk {
		return p.runAllGet(sensor, converted, expression)
	}
	return p.runWalk(sensor, converted, expression)
}

// runAllGet handles the case where every OID in the sensor was a scalar
// GET: there is exactly one synthetic index, and each entry contributes
// its single value. Only the positions the expression references need a
// numeric value; a position used solely by the output path template (e.g.
// a string ifDescr labeling the sample) is passed through untouched.
func (p *Pipeline) runAllGet(sensor models.Sensor, converted models.PollResult, expression *Expression) ([]models.Sample, error) {
	values := make([]interface{}, len(converted))
	for i, e := range converted {
		values[i] = e.Single.Value
	}

	result, err := expression.Eval(values)
	if err != nil {
		p.log.Warn("expression evaluation skipped sample", "err", err)
		return nil, nil
	}

	path, err := BuildOutputPath(sensor.OutputPathTemplate, dummyGetIndex, values)
	if err != nil {
		p.log.Warn("output path skipped sample", "err", err)
		return nil, nil
	}

	return []models.Sample{{Path: path, Value: result}}, nil
}

// runWalk handles the case where at least one OID in the sensor was
// WALK'd: the walk's indexes drive the loop, GET-sourced OIDs broadcast
// their single value to every index, and duplicate output paths across
// indexes are rejected (the second occurrence is dropped with a warning).
func (p *Pipeline) runWalk(sensor models.Sensor, converted models.PollResult, expression *Expression) ([]models.Sample, error) {
	var walkIndexes []string
	for _, e := range converted {
		if e.IsWalk() {
			for _, v := range e.Many {
				walkIndexes = append(walkIndexes, v.OIDIndex)
			}
			break
		}
	}

	byIndex := make(map[string][]models.SNMPValue, len(walkIndexes))
	for _, e := range converted {
		if e.IsWalk() {
			present := make(map[string]struct{}, len(e.Many))
			for _, v := range e.Many {
				byIndex[v.OIDIndex] = append(byIndex[v.OIDIndex], v)
				present[v.OIDIndex] = struct{}{}
			}
			// Keep later positions aligned: a walk with no row for idx
			// contributes a nil value at its own position.
			for _, idx := range walkIndexes {
				if _, ok := present[idx]; !ok {
					byIndex[idx] = append(byIndex[idx], models.SNMPValue{OIDIndex: idx})
				}
			}
			continue
		}
		for _, idx := range walkIndexes {
			byIndex[idx] = append(byIndex[idx], e.Single)
		}
	}

	seenPaths := make(map[string]struct{}, len(walkIndexes))
	samples := make([]models.Sample, 0, len(walkIndexes))

	for _, idx := range walkIndexes {
		row := byIndex[idx]
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v.Value
		}

		result, err := expression.Eval(values)
		if err != nil {
			p.log.Warn("expression evaluation skipped sample", "index", idx, "err", err)
			continue
		}

		path, err := BuildOutputPath(sensor.OutputPathTemplate, idx, values)
		if err != nil {
			p.log.Warn("output path skipped sample", "index", idx, "err", err)
			continue
		}
		if _, dup := seenPaths[path]; dup {
			p.log.Warn("duplicate output path across indexes, dropping sample", "path", path, "index", idx)
			continue
		}
		seenPaths[path] = struct{}{}

		samples = append(samples, models.Sample{Path: path, Value: result})
	}

	return samples, nil
}
