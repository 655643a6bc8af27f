package pipeline

import (
	"log/slog"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/counterstore"
)

// ConvertCounters returns a copy of result in which each COUNTER/COUNTER64
// reading is replaced with a COUNTER_PER_S rate computed against the store's
// last observed reading for that exact OID position and index. A value with
// no prior reading, or whose reading decreased, yields a nil value (logged by
// the caller as a dropped sample) rather than an error — exactly the
// original "None on overflow or first read" behavior. A decrease is never
// treated as a wrap: the original bot emits null rather than guess at a
// wrapped rate. A counter store error is logged and likewise yields a nil
// value for that reading only; its siblings are still converted.
func ConvertCounters(result models.PollResult, entityID, sensorID int64, store counterstore.Store, now float64, log *slog.Logger) (models.PollResult, error) {
	if log == nil {
		log = slog.Default()
	}
	converted := make(models.PollResult, len(result))
	for pos, entry := range result {
		switch {
		case entry.IsWalk():
			values := make([]models.SNMPValue, len(entry.Many))
			for i, v := range entry.Many {
				cv, err := convertOne(v, entityID, sensorID, pos, store, now, log)
				if err != nil {
					return nil, err
				}
				values[i] = cv
			}
			converted[pos] = models.ManyEntry(values)
		default:
			cv, err := convertOne(entry.Single, entityID, sensorID, pos, store, now, log)
			if err != nil {
				return nil, err
			}
			converted[pos] = models.SingleEntry(cv)
		}
	}
	return converted, nil
}

func convertOne(v models.SNMPValue, entityID, sensorID int64, pos int, store counterstore.Store, now float64, log *slog.Logger) (models.SNMPValue, error) {
	if v.Type != models.TypeCounter && v.Type != models.TypeCounter64 {
		return v, nil
	}

	raw, ok := toInt64(v.Value)
	if !ok {
		return models.SNMPValue{OID: v.OID, OIDIndex: v.OIDIndex, Type: models.TypeCounterPerS, Value: nil}, nil
	}

	ident := models.CounterIdent(entityID, sensorID, pos, v.OID, v.OIDIndex)
	prev, found, err := store.Get(ident)
	if err != nil {
		log.Warn("counter store unavailable, dropping sample", "ident", ident, "err", err)
		return models.SNMPValue{OID: v.OID, OIDIndex: v.OIDIndex, Type: models.TypeCounterPerS, Value: nil}, nil
	}
	if err := store.Put(ident, raw, now); err != nil {
		log.Warn("counter store unavailable, dropping sample", "ident", ident, "err", err)
		return models.SNMPValue{OID: v.OID, OIDIndex: v.OIDIndex, Type: models.TypeCounterPerS, Value: nil}, nil
	}

	out := models.SNMPValue{OID: v.OID, OIDIndex: v.OIDIndex, Type: models.TypeCounterPerS}
	if !found {
		out.Value = nil
		return out, nil
	}

	dt := now - prev.TS
	if dt <= 0 {
		out.Value = nil
		return out, nil
	}

	delta := raw - prev.Value
	if delta < 0 {
		log.Warn("counter decreased, dropping sample", "oid", v.OID, "oid_index", v.OIDIndex, "prev", prev.Value, "raw", raw)
		out.Value = nil
		return out, nil
	}

	out.Value = float64(delta) / dt
	return out, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
