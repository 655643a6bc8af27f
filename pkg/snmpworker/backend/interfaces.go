package backend

import (
	"context"
	"fmt"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

const interfaceEntityType = "interface"

// ListInterfaceChildren returns the existing "interface" entity_type
// children of parentID, as the reconciler needs them to diff against the
// device's current SNMP interface table.
func (c *Client) ListInterfaceChildren(ctx context.Context, accountID, parentID int64) ([]models.InterfaceEntity, error) {
	var all []models.InterfaceEntity
	path := fmt.Sprintf("/accounts/%d/entities/", accountID)
	resp, err := c.http.R().SetContext(ctx).SetResult(&all).SetQueryParam("parent", fmt.Sprint(parentID)).Get(path)
	if err != nil {
		return nil, workerr.NewBackendError("list interface children", 0, err)
	}
	if !resp.IsSuccess() {
		return nil, workerr.NewBackendError("list interface children", resp.StatusCode(), nil)
	}

	out := all[:0]
	for _, e := range all {
		if e.Type == interfaceEntityType {
			out = append(out, e)
		}
	}
	return out, nil
}

// CreateInterfaceChild creates a new interface child entity under parentID.
func (c *Client) CreateInterfaceChild(ctx context.Context, accountID int64, e models.InterfaceEntity) error {
	e.Type = interfaceEntityType
	path := fmt.Sprintf("/accounts/%d/entities/", accountID)
	resp, err := c.http.R().SetContext(ctx).SetBody(e).Post(path)
	if err != nil {
		return workerr.NewBackendError("create interface child", 0, err)
	}
	if !resp.IsSuccess() {
		return workerr.NewBackendError("create interface child", resp.StatusCode(), nil)
	}
	return nil
}

// UpdateInterfaceChild overwrites an existing interface child entity's
// name/details.
func (c *Client) UpdateInterfaceChild(ctx context.Context, accountID int64, e models.InterfaceEntity) error {
	path := fmt.Sprintf("/accounts/%d/entities/%d", accountID, e.EntityID)
	resp, err := c.http.R().SetContext(ctx).SetBody(e).Put(path)
	if err != nil {
		return workerr.NewBackendError("update interface child", 0, err)
	}
	if !resp.IsSuccess() {
		return workerr.NewBackendError("update interface child", resp.StatusCode(), nil)
	}
	return nil
}

// DeleteInterfaceChild removes an interface child entity that no longer
// has a corresponding SNMP table row.
func (c *Client) DeleteInterfaceChild(ctx context.Context, accountID, entityID int64) error {
	path := fmt.Sprintf("/accounts/%d/entities/%d", accountID, entityID)
	resp, err := c.http.R().SetContext(ctx).Delete(path)
	if err != nil {
		return workerr.NewBackendError("delete interface child", 0, err)
	}
	if !resp.IsSuccess() {
		return workerr.NewBackendError("delete interface child", resp.StatusCode(), nil)
	}
	return nil
}
