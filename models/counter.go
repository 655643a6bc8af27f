package models

import "fmt"

// CounterRecord is the last observed value and timestamp for one counter
// identity, as persisted by a counterstore.Store.
type CounterRecord struct {
	Value int64
	TS    float64 // Unix seconds, fractional.
}

// CounterIdent builds the deterministic key identifying one counter reading
// position across jobs and devices:
// "{entity_id}/{sensor_id}/{position_in_oid_list}/{oid}/{oid_index}".
func CounterIdent(entityID, sensorID int64, position int, oid, oidIndex string) string {
	return fmt.Sprintf("%d/%d/%d/%s/%s", entityID, sensorID, position, oid, oidIndex)
}
