package beeforce

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Record is a remote resource as the backend returns it. The portal
// never owns these shapes, so they stay generic maps end to end.
type Record = map[string]any

// ListRecords fetches every record of a collection resource.
func (c *Client) ListRecords(ctx context.Context, path string) ([]Record, error) {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("list %s: status %d", path, resp.StatusCode)
	}
	var records []Record
	if err := resp.JSON(&records); err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return records, nil
}

// FetchRecord fetches a single record by id.
func (c *Client) FetchRecord(ctx context.Context, path string, id int) (Record, error) {
	resp, err := c.Get(ctx, path+"/"+strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("fetch %s/%d: status %d", path, id, resp.StatusCode)
	}
	var record Record
	if err := resp.JSON(&record); err != nil {
		return nil, fmt.Errorf("fetch %s/%d: %w", path, id, err)
	}
	return record, nil
}

const timecardProxyPath = "/web-client/restProxy/timecards/"

// FetchTimecards queries the timecard read proxy for one employee and
// date range. attributes is the comma-separated relation expansion
// list the proxy expects.
func (c *Client) FetchTimecards(ctx context.Context, startDate, endDate, externalNumber, attributes string) ([]Record, error) {
	query := url.Values{}
	query.Set("startDate", startDate)
	query.Set("endDate", endDate)
	query.Set("externalNumber", externalNumber)
	query.Set("attributes", attributes)

	resp, err := c.GetQuery(ctx, timecardProxyPath, query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("fetch timecards: status %d", resp.StatusCode)
	}
	var records []Record
	if err := resp.JSON(&records); err != nil {
		return nil, fmt.Errorf("fetch timecards: %w", err)
	}
	return records, nil
}
