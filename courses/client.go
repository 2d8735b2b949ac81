package courses

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-elearning-portal/internal/apiclient"
)

const coursesPath = "/api/courses"

// Options configures a Client.
type Options struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequireInstructor bool
	Observer          apiclient.Observer
}

// Client calls the course endpoints with the current bearer token.
type Client struct {
	api               *apiclient.Client
	requireInstructor bool
}

func NewClient(tokens apiclient.TokenSource, opts Options) *Client {
	api := apiclient.New(opts.BaseURL, opts.HTTPClient, tokens)
	api.Observer = opts.Observer
	return &Client{api: api, requireInstructor: opts.RequireInstructor}
}

// RequireInstructor reports whether Create and Update insist on an instructor.
func (c *Client) RequireInstructor() bool { return c.requireInstructor }

func (c *Client) List(ctx context.Context) ([]Course, error) {
	return c.list(ctx, "list courses", coursesPath)
}

func (c *Client) Search(ctx context.Context, title string) ([]Course, error) {
	return c.list(ctx, "search courses", coursesPath+"/search?"+url.Values{"title": {title}}.Encode())
}

func (c *Client) ByInstructor(ctx context.Context, name string) ([]Course, error) {
	return c.list(ctx, "list courses by instructor", coursesPath+"/instructor/"+url.PathEscape(name))
}

func (c *Client) list(ctx context.Context, op, path string) ([]Course, error) {
	var out []Course
	if err := c.api.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, classify(op, err)
	}
	if out == nil {
		out = []Course{}
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (Course, error) {
	var out Course
	if err := c.api.Do(ctx, http.MethodGet, coursePath(id), nil, &out); err != nil {
		return Course{}, classify("get course", err)
	}
	return out, nil
}

// Create validates in and posts it. Invalid input never reaches the network.
func (c *Client) Create(ctx context.Context, in Input) (Course, error) {
	if err := ValidateInput(in, c.requireInstructor); err != nil {
		return Course{}, err
	}

	var out Course
	if err := c.api.Do(ctx, http.MethodPost, coursesPath, in, &out); err != nil {
		return Course{}, classify("create course", err)
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id int64, in Input) (Course, error) {
	if err := ValidateInput(in, c.requireInstructor); err != nil {
		return Course{}, err
	}

	var out Course
	if err := c.api.Do(ctx, http.MethodPut, coursePath(id), in, &out); err != nil {
		return Course{}, classify("update course", err)
	}
	if out.ID == 0 {
		out.ID = id
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.api.Do(ctx, http.MethodDelete, coursePath(id), nil, nil); err != nil {
		return classify("delete course", err)
	}
	return nil
}

func coursePath(id int64) string {
	return coursesPath + "/" + strconv.FormatInt(id, 10)
}
