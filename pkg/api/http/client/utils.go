package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

// do is a helper to send a request (with an optional JSON body) & unmarshal the response
func (c *Client) do(ctx context.Context, method string, addr *url.URL, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, addr.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 { // some error code, assume message is error message
		return fmt.Errorf("%w: %s", statusError(resp.StatusCode), bytes.TrimSpace(data))
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// setQueryString sets the query string of a URL based on the given query object.
func setQueryString(u *url.URL, q *structs.Query) {
	if q == nil {
		q = &structs.Query{}
	}
	q.Sanitize()
	values := u.Query()

	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.DefinitionIDs != nil {
		values["definition_ids"] = q.DefinitionIDs
	}
	if q.Statuses != nil {
		ss := []string{}
		for _, s := range q.Statuses {
			ss = append(ss, string(s))
		}
		values["statuses"] = ss
	}
	for _, t := range q.Tags {
		values.Add("tags", string(t))
	}
	if q.IsFull != nil {
		values.Set("is_full", strconv.FormatBool(*q.IsFull))
	}

	u.RawQuery = values.Encode()
}

func setJobQueryString(u *url.URL, q *api.JobQuery) {
	if q == nil {
		return
	}
	values := u.Query()
	for _, s := range q.Statuses {
		values.Add("statuses", s.String())
	}
	u.RawQuery = values.Encode()
}

// statusError maps an http status code back to the harvester error it was most likely
// returned for, so callers can match it with errors.Is.
func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return errors.ErrInvalidArg
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusConflict:
		return errors.ErrInvalidState
	case http.StatusServiceUnavailable:
		return errors.ErrEngineBusy
	default:
		return fmt.Errorf("bad status code %d", code)
	}
}
