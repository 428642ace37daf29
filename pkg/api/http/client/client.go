package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/api/http/common"
	"github.com/voidshard/harvester/pkg/engine"
	"github.com/voidshard/harvester/pkg/structs"
)

type Client struct {
	url  *url.URL
	http *http.Client
}

func New(address string) (*Client, error) {
	u, err := url.Parse(address)
	return &Client{url: u, http: &http.Client{}}, err
}

func (c *Client) Schedule(ctx context.Context, req *api.ScheduleRequest) (*structs.JobInstance, error) {
	addr := c.addr(common.API_SCHEDULE)
	var out structs.JobInstance
	return &out, c.do(ctx, http.MethodPost, addr, req, &out)
}

func (c *Client) Jobs(q *api.JobQuery) ([]*engine.Info, error) {
	addr := c.addr(common.API_JOBS)
	setJobQueryString(addr, q)
	var out []*engine.Info
	return out, c.do(context.Background(), http.MethodGet, addr, nil, &out)
}

func (c *Client) Cancel(id string) error {
	addr := c.addr(common.CancelPath(id))
	var out common.UpdateResponse
	return c.do(context.Background(), http.MethodPatch, addr, nil, &out)
}

func (c *Client) Clear(id string) error {
	addr := c.addr(common.JobPath(id))
	var out common.UpdateResponse
	return c.do(context.Background(), http.MethodDelete, addr, nil, &out)
}

func (c *Client) Definitions(ctx context.Context, activeOnly bool) ([]*structs.JobDefinition, error) {
	addr := c.addr(common.API_DEFINITIONS)
	if activeOnly {
		addr.RawQuery = url.Values{"active": []string{strconv.FormatBool(activeOnly)}}.Encode()
	}
	var out []*structs.JobDefinition
	return out, c.do(ctx, http.MethodGet, addr, nil, &out)
}

func (c *Client) Instances(ctx context.Context, q *structs.Query) ([]*structs.JobInstance, error) {
	addr := c.addr(common.API_INSTANCES)
	setQueryString(addr, q)
	var out []*structs.JobInstance
	return out, c.do(ctx, http.MethodGet, addr, nil, &out)
}

func (c *Client) addr(path string) *url.URL {
	return &url.URL{Scheme: c.url.Scheme, Host: c.url.Host, Path: path}
}
