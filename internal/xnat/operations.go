package xnat

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"xnatflow/internal/logging"
	"xnatflow/internal/services"
)

const (
	workflowDataType  = "wrk:workflowData"
	workflowIDField   = "wrk:workflowData.ID"
	endpointSearch    = "GetIdentifiers"
	endpointStore     = "StoreXML"
	endpointClose     = "CloseServiceSession"
	operationSearch   = "search"
	operationStore    = "store"
	operationClose    = "execute"
	searchComparison  = "="
	storeAllowDataDel = false
	storeAllowItemOvr = true
)

// Search returns the workflow identifiers whose ID field equals runID. An
// empty slice means no record exists.
func (c *Client) Search(ctx context.Context, session Session, runID string) ([]string, error) {
	args := []Arg{
		String(session.Token),
		String(workflowIDField),
		String(searchComparison),
		String(runID),
		String(workflowDataType),
	}
	result, err := c.Call(ctx, session, endpointSearch, operationSearch, args, false)
	if err != nil {
		return nil, err
	}
	ids := result.Strings()
	c.logger.Debug("workflow search complete",
		logging.String(logging.FieldRunID, runID),
		logging.Int("matches", len(ids)))
	return ids, nil
}

// FetchWorkflow downloads the XML document for one workflow identifier.
func (c *Client) FetchWorkflow(ctx context.Context, session Session, id string) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, component, "fetch", "empty workflow id", nil)
	}
	target := fmt.Sprintf("%s/app/template/XMLSearch.vm/id/%s/data_type/%s",
		c.baseURL, url.PathEscape(id), workflowDataType)
	return c.get(ctx, c.sessionClient(session), target, "fetch")
}

// Store pushes a serialized workflow document. The server creates or
// overwrites the record keyed by the document's identity attributes.
func (c *Client) Store(ctx context.Context, session Session, document string) error {
	args := []Arg{
		String(session.Token),
		String(document),
		Bool(storeAllowDataDel),
		Bool(storeAllowItemOvr),
	}
	if _, err := c.Call(ctx, session, endpointStore, operationStore, args, true); err != nil {
		return err
	}
	c.logger.Debug("workflow stored", logging.Int("bytes", len(document)))
	return nil
}

// CloseSession ends the server-side session identified by session.
func (c *Client) CloseSession(ctx context.Context, session Session) error {
	_, err := c.Call(ctx, session, endpointClose, operationClose, nil, false)
	return err
}
