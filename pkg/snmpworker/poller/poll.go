package poller

import (
	"log/slog"

	"github.com/gosnmp/gosnmp"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// Poller issues a sensor's ordered OID list against a live session,
// preserving OID position so the pipeline can line converted values up
// with the sensor's expression variables.
type Poller struct {
	log *slog.Logger
}

// New returns a Poller that logs to log.
func New(log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{log: log}
}

// Poll executes each oid in order against session: FetchGet issues a Get
// for the scalar instance (".0" appended if missing), FetchWalk issues a
// WalkAll for v1 sessions and a BulkWalkAll for v2c/v3 sessions, matching
// the original bot's per-version operation choice. Position in the
// returned PollResult matches position in oids.
func (p *Poller) Poll(session *gosnmp.GoSNMP, oids []models.OIDSpec) (models.PollResult, error) {
	result := make(models.PollResult, len(oids))
	for i, spec := range oids {
		switch spec.Method {
		case models.FetchGet:
			v, err := p.doGet(session, spec.OID)
			if err != nil {
				return nil, workerr.NewSNMPError("get "+spec.OID, err)
			}
			result[i] = models.SingleEntry(v)
		case models.FetchWalk:
			vs, err := p.doWalk(session, spec.OID)
			if err != nil {
				return nil, workerr.NewSNMPError("walk "+spec.OID, err)
			}
			result[i] = models.ManyEntry(vs)
		default:
			return nil, workerr.NewConfigError("unknown fetch method for oid "+spec.OID, nil)
		}
	}
	return result, nil
}

func (p *Poller) doGet(session *gosnmp.GoSNMP, oid string) (models.SNMPValue, error) {
	instance := oid
	if len(instance) < 2 || instance[len(instance)-2:] != ".0" {
		instance += ".0"
	}
	pkt, err := session.Get([]string{instance})
	if err != nil {
		return models.SNMPValue{}, err
	}
	if len(pkt.Variables) == 0 {
		return models.SNMPValue{OID: oid, OIDIndex: "0", Value: nil}, nil
	}
	return pduToValue(oid, "0", pkt.Variables[0]), nil
}

func (p *Poller) doWalk(session *gosnmp.GoSNMP, oid string) ([]models.SNMPValue, error) {
	var pdus []gosnmp.SnmpPDU
	var err error
	if session.Version == gosnmp.Version1 {
		pdus, err = session.WalkAll(oid)
	} else {
		pdus, err = session.BulkWalkAll(oid)
	}
	if err != nil {
		return nil, err
	}

	values := make([]models.SNMPValue, 0, len(pdus))
	for _, v := range pdus {
		idx := indexSuffix(oid, v.Name)
		values = append(values, pduToValue(oid, idx, v))
	}
	return values, nil
}

// indexSuffix strips the root OID prefix from the returned variable name,
// leaving the table index — the same convention the original bot used to
// key per-index results and substitute {$index}.
func indexSuffix(root, full string) string {
	root = trimLeadingDot(root)
	full = trimLeadingDot(full)
	if len(full) > len(root)+1 && full[:len(root)] == root && full[len(root)] == '.' {
		return full[len(root)+1:]
	}
	return full
}

func trimLeadingDot(s string) string {
	if len(s) > 0 && s[0] == '.' {
		return s[1:]
	}
	return s
}

// pduToValue converts a raw gosnmp variable into a typed SNMPValue. Unlike
// the teacher's MIB-syntax-driven decoder, there is no textual syntax
// available here — only the wire ASN.1 type — so the mapping is by wire
// type alone: counters stay raw integers for the pipeline's counter
// converter to interpret, everything else is normalized to a float64 or
// string.
func pduToValue(oid, oidIndex string, pdu gosnmp.SnmpPDU) models.SNMPValue {
	switch pdu.Type {
	case gosnmp.Counter32:
		return models.SNMPValue{OID: oid, OIDIndex: oidIndex, Type: models.TypeCounter, Value: gosnmp.ToBigInt(pdu.Value).Int64()}
	case gosnmp.Counter64:
		return models.SNMPValue{OID: oid, OIDIndex: oidIndex, Type: models.TypeCounter64, Value: gosnmp.ToBigInt(pdu.Value).Int64()}
	case gosnmp.OctetString:
		b, ok := pdu.Value.([]byte)
		if !ok {
			return models.SNMPValue{OID: oid, OIDIndex: oidIndex, Type: models.TypeString, Value: ""}
		}
		return models.SNMPValue{OID: oid, OIDIndex: oidIndex, Type: models.TypeString, Value: string(b)}
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return models.SNMPValue{OID: oid, OIDIndex: oidIndex, Type: models.TypeGauge, Value: nil}
	default:
		return models.SNMPValue{OID: oid, OIDIndex: oidIndex, Type: models.TypeGauge, Value: float64(gosnmp.ToBigInt(pdu.Value).Int64())}
	}
}
