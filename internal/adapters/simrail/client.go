package simrail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/sirius/internal/core/domain"
)

// Options configures a Client.
type Options struct {
	TrainsURL    string
	TimetableURL string
	Timeout      time.Duration
	UserAgent    string
	ClientName   string
	Contact      string
}

// Client implements ports.GameClient against the public game API.
type Client struct {
	http *fasthttp.Client
	opts Options
}

type trainsResponse struct {
	Result      bool              `json:"result"`
	Data        []domain.RawTrain `json:"data"`
	Description string            `json:"description"`
}

// New creates a new game API client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                     opts.UserAgent,
			MaxConnsPerHost:          32,
			ReadTimeout:              opts.Timeout,
			WriteTimeout:             opts.Timeout,
			NoDefaultUserAgentHeader: opts.UserAgent != "",
		},
		opts: opts,
	}
}

// Trains returns the trains currently running on a server.
func (c *Client) Trains(ctx context.Context, server string) ([]domain.RawTrain, error) {
	q := url.Values{"serverCode": {server}}
	var resp trainsResponse
	if err := c.getJSON(ctx, c.opts.TrainsURL+"/trains-open?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if !resp.Result {
		return nil, fmt.Errorf("trains for %s: upstream reported failure: %s", server, resp.Description)
	}
	return resp.Data, nil
}

// Timetable returns the schedule of one train run.
func (c *Client) Timetable(ctx context.Context, server, trainNo string) ([]domain.RawEntry, error) {
	q := url.Values{"serverCode": {server}, "train": {trainNo}}
	var entries []domain.RawEntry
	if err := c.getJSON(ctx, c.opts.TimetableURL+"/timetable?"+q.Encode(), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) getJSON(ctx context.Context, uri string, out any) error {
	timeout := c.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.opts.UserAgent != "" {
		req.Header.SetUserAgent(c.opts.UserAgent)
	}
	if c.opts.ClientName != "" {
		req.Header.Set("xx-client", c.opts.ClientName)
	}
	if c.opts.Contact != "" {
		req.Header.Set("xx-contact", c.opts.Contact)
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("GET %s: %w", uri, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return fmt.Errorf("HTTP %d for %s", code, uri)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", uri, err)
	}
	return nil
}
