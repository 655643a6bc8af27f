// Package backend talks to the control-plane backend: it waits for the
// backend to finish its own startup migrations, discovers which devices and
// sensors this bot is responsible for, posts collected samples back, and
// performs the CRUD calls the interface reconciler needs.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// DefaultReadinessPollInterval matches the original bot's status poll
// cadence while waiting for the backend to finish migrating.
const DefaultReadinessPollInterval = 10 * time.Second

// DefaultHTTPTimeout bounds every backend request.
const DefaultHTTPTimeout = 10 * time.Second

// Client is a thin resty wrapper around the backend's HTTP API. Every
// request carries the bot token as the "b" query parameter, matching the
// original bot's authentication scheme.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

// New returns a Client for baseURL, authenticating every request with
// botToken.
func New(baseURL, botToken string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultHTTPTimeout).
		SetQueryParam("b", botToken).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, log: log}
}

type statusInfo struct {
	DBMigrationNeeded bool `json:"db_migration_needed"`
	UserExists        bool `json:"user_exists"`
}

// WaitReady polls /status/info every pollInterval until the backend reports
// no pending migration and at least one user account exists, or ctx is
// done.
func (c *Client) WaitReady(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = DefaultReadinessPollInterval
	}
	for {
		var info statusInfo
		resp, err := c.http.R().SetContext(ctx).SetResult(&info).Get("/status/info")
		if err == nil && resp.IsSuccess() && !info.DBMigrationNeeded && info.UserExists {
			return nil
		}
		if err != nil {
			c.log.Warn("backend readiness probe failed", "err", err)
		} else if !resp.IsSuccess() {
			c.log.Warn("backend readiness probe returned error status", "status", resp.StatusCode())
		} else {
			c.log.Info("backend not ready yet", "db_migration_needed", info.DBMigrationNeeded, "user_exists", info.UserExists)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

type account struct {
	ID int64 `json:"id"`
}

type entity struct {
	ID   int64  `json:"id"`
	Type string `json:"entity_type"`
}

// entityDetail mirrors the backend's per-entity representation: sensors
// and the credential reference are nested under the protocol they belong
// to, since one entity can in principle be monitored over more than one
// protocol. Only the "snmp" protocol entry is ever consulted here.
type entityDetail struct {
	ID      int64  `json:"id"`
	Type    string `json:"entity_type"`
	Details struct {
		IPv4 string `json:"ipv4"`
	} `json:"details"`
	Protocols map[string]protocolEntry `json:"protocols"`
}

type protocolEntry struct {
	Credential *int64      `json:"credential"`
	Sensors    []sensorRef `json:"sensors"`
}

// sensorRef is the per-entity sensor attachment: it carries the sensor's
// id and an optional interval override, leaving the sensor's own
// definition (expression, output path, OIDs, default interval) to be
// fetched separately.
type sensorRef struct {
	SensorID int64 `json:"sensor"`
	Interval *int  `json:"interval"`
}

type credentialResponse struct {
	Details credentialDetail `json:"details"`
}

type credentialDetail struct {
	Version           string `json:"version"`
	Community         string `json:"community"`
	Username          string `json:"username"`
	SecurityLevel     string `json:"security_level"`
	AuthProtocol      string `json:"auth_protocol"`
	AuthPassphrase    string `json:"auth_passphrase"`
	PrivacyProtocol   string `json:"privacy_protocol"`
	PrivacyPassphrase string `json:"privacy_passphrase"`
}

type sensorResponse struct {
	DefaultInterval *int         `json:"default_interval"`
	Details         sensorDetail `json:"details"`
}

type sensorDetail struct {
	Expression         string `json:"expression"`
	OutputPathTemplate string `json:"output_path"`
	OIDs               []struct {
		OID    string `json:"oid"`
		Method string `json:"method"`
	} `json:"oids"`
}

// entityType identifies the SNMP-monitored device entities this bot polls,
// as distinct from the interface child entities the reconciler manages.
const entityType = "device"

// snmpProtocol is the key this bot looks for under an entity's protocols
// map; an entity with no "snmp" entry, no credential, or no sensors under
// it is not in scope for this bot.
const snmpProtocol = "snmp"

// FetchJobs runs the discovery pipeline: list accounts, list each
// account's entities, fetch entity detail for each device entity, resolve
// its credential and each attached sensor's own definition, and assemble a
// JobPayload per device that passes every check. Devices or sensors
// failing a check are skipped with a warning rather than aborting
// discovery, exactly as the original bot's job config loader did.
func (c *Client) FetchJobs(ctx context.Context) ([]models.JobPayload, error) {
	var accounts []account
	if _, err := c.http.R().SetContext(ctx).SetResult(&accounts).Get("/accounts/"); err != nil {
		return nil, workerr.NewBackendError("list accounts", 0, err)
	}

	var jobs []models.JobPayload
	for _, acc := range accounts {
		var entities []entity
		path := fmt.Sprintf("/accounts/%d/entities/", acc.ID)
		resp, err := c.http.R().SetContext(ctx).SetResult(&entities).Get(path)
		if err != nil {
			return nil, workerr.NewBackendError("list entities", 0, err)
		}
		if !resp.IsSuccess() {
			return nil, workerr.NewBackendError("list entities", resp.StatusCode(), nil)
		}

		for _, e := range entities {
			if e.Type != entityType {
				continue
			}
			job, ok, err := c.fetchDeviceJob(ctx, acc.ID, e.ID)
			if err != nil {
				return nil, err
			}
			if ok {
				jobs = append(jobs, job)
			}
		}
	}
	return jobs, nil
}

func (c *Client) fetchDeviceJob(ctx context.Context, accountID, entityID int64) (models.JobPayload, bool, error) {
	var detail entityDetail
	path := fmt.Sprintf("/accounts/%d/entities/%d", accountID, entityID)
	resp, err := c.http.R().SetContext(ctx).SetResult(&detail).Get(path)
	if err != nil {
		return models.JobPayload{}, false, workerr.NewBackendError("get entity detail", 0, err)
	}
	if !resp.IsSuccess() {
		return models.JobPayload{}, false, workerr.NewBackendError("get entity detail", resp.StatusCode(), nil)
	}

	proto, ok := detail.Protocols[snmpProtocol]
	if !ok {
		c.log.Warn("entity has no snmp protocol, skipping", "entity_id", entityID)
		return models.JobPayload{}, false, nil
	}
	if proto.Credential == nil {
		c.log.Warn("entity has no credential, skipping", "entity_id", entityID)
		return models.JobPayload{}, false, nil
	}
	if len(proto.Sensors) == 0 {
		c.log.Warn("entity has no sensors, skipping", "entity_id", entityID)
		return models.JobPayload{}, false, nil
	}

	var credResp credentialResponse
	credPath := fmt.Sprintf("/accounts/%d/credentials/%d", accountID, *proto.Credential)
	resp, err = c.http.R().SetContext(ctx).SetResult(&credResp).Get(credPath)
	if err != nil {
		return models.JobPayload{}, false, workerr.NewBackendError("get credential", 0, err)
	}
	if !resp.IsSuccess() {
		return models.JobPayload{}, false, workerr.NewBackendError("get credential", resp.StatusCode(), nil)
	}

	sensors := make([]models.Sensor, 0, len(proto.Sensors))
	for _, ref := range proto.Sensors {
		var sensorResp sensorResponse
		sensorPath := fmt.Sprintf("/accounts/%d/sensors/%d", accountID, ref.SensorID)
		resp, err := c.http.R().SetContext(ctx).SetResult(&sensorResp).Get(sensorPath)
		if err != nil {
			return models.JobPayload{}, false, workerr.NewBackendError("get sensor", 0, err)
		}
		if !resp.IsSuccess() {
			return models.JobPayload{}, false, workerr.NewBackendError("get sensor", resp.StatusCode(), nil)
		}

		interval, ok := effectiveInterval(ref.Interval, sensorResp.DefaultInterval)
		if !ok {
			c.log.Warn("sensor interval not set, skipping", "entity_id", entityID, "sensor_id", ref.SensorID)
			continue
		}

		s := sensorResp.Details
		oids := make([]models.OIDSpec, 0, len(s.OIDs))
		for _, o := range s.OIDs {
			method := models.FetchGet
			if o.Method == string(models.FetchWalk) {
				method = models.FetchWalk
			}
			oids = append(oids, models.OIDSpec{OID: o.OID, Method: method})
		}
		sensors = append(sensors, models.Sensor{
			SensorID:           ref.SensorID,
			IntervalSeconds:    interval,
			Expression:         s.Expression,
			OutputPathTemplate: s.OutputPathTemplate,
			OIDs:               oids,
		})
	}
	if len(sensors) == 0 {
		c.log.Warn("entity has no sensors with a usable interval, skipping", "entity_id", entityID)
		return models.JobPayload{}, false, nil
	}

	cred := models.Credential{
		Version:           models.CredentialVersion(credResp.Details.Version),
		Community:         credResp.Details.Community,
		Username:          credResp.Details.Username,
		SecurityLevel:     credResp.Details.SecurityLevel,
		AuthProtocol:      credResp.Details.AuthProtocol,
		AuthPassphrase:    credResp.Details.AuthPassphrase,
		PrivacyProtocol:   credResp.Details.PrivacyProtocol,
		PrivacyPassphrase: credResp.Details.PrivacyPassphrase,
	}

	return models.JobPayload{
		AccountID:  accountID,
		EntityID:   entityID,
		IPv4:       detail.Details.IPv4,
		Credential: cred,
		Sensors:    sensors,
	}, true, nil
}

// effectiveInterval resolves a sensor's polling interval: the per-entity
// override if set, else the sensor's own default, else "no usable
// interval" — matching the original bot's `entry.interval ?? sensor.default_interval`
// fallback, which drops the sensor with a warning when both are unset.
func effectiveInterval(override, def *int) (int, bool) {
	if override != nil {
		return *override, true
	}
	if def != nil {
		return *def, true
	}
	return 0, false
}

// PostValues sends samples to the backend's values ingestion endpoint for
// accountID. An empty sample list is a no-op — the original bot never
// issues an empty POST.
func (c *Client) PostValues(ctx context.Context, accountID int64, samples []models.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	path := fmt.Sprintf("/accounts/%d/values/", accountID)
	resp, err := c.http.R().SetContext(ctx).SetBody(samples).Post(path)
	if err != nil {
		return workerr.NewBackendError("post values", 0, err)
	}
	if !resp.IsSuccess() {
		return workerr.NewBackendError("post values", resp.StatusCode(), nil)
	}
	return nil
}
