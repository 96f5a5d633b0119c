package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

const (
	// DefaultCategoryID is "People & Blogs", used when a video has no category
	DefaultCategoryID = "22"

	defaultTimeout = 30 * time.Second
)

// API is the set of YouTube operations exposed through the proxy. Every call
// runs with the caller's credentials only.
type API interface {
	GetVideo(ctx context.Context, creds auth.Credentials, videoID string) (*ytapi.Video, error)
	AddComment(ctx context.Context, creds auth.Credentials, videoID, text string) (*ytapi.CommentThread, error)
	UpdateTitle(ctx context.Context, creds auth.Credentials, videoID, title string) (*ytapi.Video, error)
	DeleteComment(ctx context.Context, creds auth.Credentials, commentID string) error
}

// Error is a failed downstream call with the HTTP status to report
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("youtube API error (%d): %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the downstream failure is transient
func (e *Error) Retryable() bool {
	return e.Status >= http.StatusInternalServerError
}

// Client calls the YouTube Data API v3. It holds no credentials; a service is
// built per call around the request's token.
type Client struct {
	endpoint  string
	transport http.RoundTripper
	timeout   time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithEndpoint points the client at a different API base URL
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTransport sets the base transport under the OAuth2 transport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout bounds each downstream request
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

var _ API = (*Client)(nil)

// NewClient creates a YouTube client
func NewClient(opts ...Option) *Client {
	c := &Client{
		transport: http.DefaultTransport,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) service(ctx context.Context, creds auth.Credentials) (*ytapi.Service, error) {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: creds.TokenSource(),
			Base:   c.transport,
		},
		Timeout: c.timeout,
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Message: "failed to create YouTube service", Err: err}
	}
	return svc, nil
}

// GetVideo returns the snippet of a video, or nil when it does not exist
func (c *Client) GetVideo(ctx context.Context, creds auth.Credentials, videoID string) (*ytapi.Video, error) {
	if err := requireArg("video ID", videoID); err != nil {
		return nil, err
	}
	svc, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("list videos", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return resp.Items[0], nil
}

// AddComment posts a top-level comment on a video
func (c *Client) AddComment(ctx context.Context, creds auth.Credentials, videoID, text string) (*ytapi.CommentThread, error) {
	if err := requireArg("video ID", videoID); err != nil {
		return nil, err
	}
	if err := requireArg("comment", text); err != nil {
		return nil, err
	}
	svc, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	thread := &ytapi.CommentThread{
		Snippet: &ytapi.CommentThreadSnippet{
			VideoId: videoID,
			TopLevelComment: &ytapi.Comment{
				Snippet: &ytapi.CommentSnippet{TextOriginal: text},
			},
		},
	}
	created, err := svc.CommentThreads.Insert([]string{"snippet"}, thread).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("insert comment thread", err)
	}
	return created, nil
}

// UpdateTitle changes a video's title. videos.update replaces the whole
// snippet, so the current one is fetched first and only the title changes.
func (c *Client) UpdateTitle(ctx context.Context, creds auth.Credentials, videoID, title string) (*ytapi.Video, error) {
	if err := requireArg("video ID", videoID); err != nil {
		return nil, err
	}
	if err := requireArg("title", title); err != nil {
		return nil, err
	}
	svc, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("list videos", err)
	}

	snippet := &ytapi.VideoSnippet{}
	if len(resp.Items) > 0 && resp.Items[0].Snippet != nil {
		current := resp.Items[0].Snippet
		snippet.Description = current.Description
		snippet.Tags = current.Tags
		snippet.CategoryId = current.CategoryId
		snippet.DefaultLanguage = current.DefaultLanguage
	}
	snippet.Title = title
	if snippet.CategoryId == "" {
		snippet.CategoryId = DefaultCategoryID
	}

	updated, err := svc.Videos.Update([]string{"snippet"}, &ytapi.Video{
		Id:      videoID,
		Snippet: snippet,
	}).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("update video", err)
	}
	return updated, nil
}

// DeleteComment removes a comment by ID
func (c *Client) DeleteComment(ctx context.Context, creds auth.Credentials, commentID string) error {
	if err := requireArg("comment ID", commentID); err != nil {
		return err
	}
	svc, err := c.service(ctx, creds)
	if err != nil {
		return err
	}

	if err := svc.Comments.Delete(commentID).Context(ctx).Do(); err != nil {
		return wrapError("delete comment", err)
	}
	return nil
}

func requireArg(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Status: http.StatusBadRequest, Message: name + " is required"}
	}
	return nil
}

func wrapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		status := apiErr.Code
		if status == 0 {
			status = http.StatusInternalServerError
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		log.LogDebugWithFields("youtube", "Downstream call failed", map[string]any{
			"op":     op,
			"status": status,
			"error":  msg,
		})
		return &Error{Status: status, Message: msg, Err: err}
	}

	log.LogWarnWithFields("youtube", "Downstream call failed", map[string]any{
		"op":    op,
		"error": err.Error(),
	})
	return &Error{Status: http.StatusInternalServerError, Message: op + " failed", Err: err}
}
