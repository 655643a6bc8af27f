// Package counterstore persists the last observed value and timestamp for
// each SNMP counter so the pipeline can derive per-second rates across
// invocations. Two implementations are provided: an in-memory map for
// single-process/test deployments, and a sqlite-backed store for
// durability across restarts.
package counterstore

import "github.com/gralabs/snmpworker/models"

// Store is the persistence boundary the counter-to-rate converter depends
// on. Get returns (record, false, nil) when no prior reading exists for
// ident — that is the normal "first read" case, not an error.
type Store interface {
	Get(ident string) (models.CounterRecord, bool, error)
	Put(ident string, value int64, ts float64) error
	Close() error
}
