// Package reconciler keeps a device's "interface" child entities in sync
// with its live SNMP interface table (ifDescr/ifSpeed), creating, updating,
// and deleting entities to converge backend state with what the device
// currently reports.
package reconciler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/poller"
	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// DefaultIntervalSeconds is how often the reconciler re-syncs a device's
// interface entities.
const DefaultIntervalSeconds = 300

const (
	ifDescrOID = "1.3.6.1.2.1.2.2.1.2"
	ifSpeedOID = "1.3.6.1.2.1.2.2.1.5"
)

// Backend is the subset of backend.Client the reconciler depends on.
type Backend interface {
	ListInterfaceChildren(ctx context.Context, accountID, parentID int64) ([]models.InterfaceEntity, error)
	CreateInterfaceChild(ctx context.Context, accountID int64, e models.InterfaceEntity) error
	UpdateInterfaceChild(ctx context.Context, accountID int64, e models.InterfaceEntity) error
	DeleteInterfaceChild(ctx context.Context, accountID, entityID int64) error
}

// Reconciler performs one device's interface convergence pass.
type Reconciler struct {
	poller  *poller.Poller
	backend Backend
	log     *slog.Logger
}

// New builds a Reconciler from its collaborators.
func New(p *poller.Poller, backend Backend, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{poller: p, backend: backend, log: log}
}

// Reconcile walks ifDescr and ifSpeed on payload's device, and creates,
// updates, or deletes interface child entities so the backend matches what
// the device currently reports. A mismatch between the ifDescr and ifSpeed
// index lists aborts the pass with a warning rather than guessing an
// alignment.
func (r *Reconciler) Reconcile(ctx context.Context, payload models.JobPayload) error {
	session, err := poller.NewSession(payload.IPv4, payload.Credential)
	if err != nil {
		return err
	}
	defer func() {
		if session.Conn != nil {
			_ = session.Conn.Close()
		}
	}()

	oids := []models.OIDSpec{
		{OID: ifDescrOID, Method: models.FetchWalk},
		{OID: ifSpeedOID, Method: models.FetchWalk},
	}
	result, err := r.poller.Poll(session, oids)
	if err != nil {
		return err
	}
	if len(result) != 2 {
		return workerr.NewSNMPError("interface walk", nil)
	}

	current, err := alignInterfaces(result[0].Many, result[1].Many)
	if err != nil {
		r.log.Warn("interface index mismatch between ifDescr and ifSpeed, skipping reconcile", "entity_id", payload.EntityID, "err", err)
		return nil
	}

	existing, err := r.backend.ListInterfaceChildren(ctx, payload.AccountID, payload.EntityID)
	if err != nil {
		return err
	}
	existingByIndex := make(map[string]models.InterfaceEntity, len(existing))
	for _, e := range existing {
		existingByIndex[e.Details.SNMPIndex] = e
	}

	for idx, iface := range current {
		want := models.InterfaceEntity{
			ParentID: payload.EntityID,
			Name:     iface.Name,
			Type:     "interface",
			Details:  models.InterfaceDetails{SNMPIndex: idx, SpeedBps: iface.SpeedBps},
		}
		have, ok := existingByIndex[idx]
		switch {
		case !ok:
			if err := r.backend.CreateInterfaceChild(ctx, payload.AccountID, want); err != nil {
				return err
			}
		case have.Name != want.Name || have.Details.SpeedBps != want.Details.SpeedBps:
			want.EntityID = have.EntityID
			if err := r.backend.UpdateInterfaceChild(ctx, payload.AccountID, want); err != nil {
				return err
			}
		}
		delete(existingByIndex, idx)
	}

	for _, stale := range existingByIndex {
		if err := r.backend.DeleteInterfaceChild(ctx, payload.AccountID, stale.EntityID); err != nil {
			return err
		}
	}

	return nil
}

// alignInterfaces pairs ifDescr and ifSpeed rows by SNMP table index. It
// returns an error unless the two walks returned the same indexes in the
// same order — the caller treats that as "try again next cycle"; the rows
// are never sorted to force an alignment.
func alignInterfaces(descrs, speeds []models.SNMPValue) (map[string]models.Interface, error) {
	if len(descrs) != len(speeds) {
		return nil, workerr.NewConfigError("ifDescr and ifSpeed walks returned different row counts", nil)
	}
	for i := range descrs {
		if descrs[i].OIDIndex != speeds[i].OIDIndex {
			return nil, workerr.NewConfigError("ifDescr index "+descrs[i].OIDIndex+" and ifSpeed index "+speeds[i].OIDIndex+" are at the same position", nil)
		}
	}

	byIndex := make(map[string]*models.Interface, len(descrs))
	for _, d := range descrs {
		name, _ := d.Value.(string)
		byIndex[d.OIDIndex] = &models.Interface{SNMPIndex: d.OIDIndex, Name: name}
	}

	speedIndexes := make(map[string]struct{}, len(speeds))
	for _, s := range speeds {
		speedIndexes[s.OIDIndex] = struct{}{}
		iface, ok := byIndex[s.OIDIndex]
		if !ok {
			return nil, workerr.NewConfigError("ifSpeed index "+s.OIDIndex+" has no matching ifDescr row", nil)
		}
		iface.SpeedBps = speedToBps(s.Value)
	}
	for idx := range byIndex {
		if _, ok := speedIndexes[idx]; !ok {
			return nil, workerr.NewConfigError("ifDescr index "+idx+" has no matching ifSpeed row", nil)
		}
	}

	out := make(map[string]models.Interface, len(byIndex))
	for idx, iface := range byIndex {
		out[idx] = *iface
	}
	return out, nil
}

func speedToBps(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
