package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
// Consumers (the sender lookup, the OpenAI classifier) depend on this
// interface rather than the concrete *Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type cached struct {
	value   string
	fetched time.Time
}

// Client reads decrypted parameters and keeps them for cacheTTL so warm
// Lambda invocations do not hit SSM on every record.
type Client struct {
	api      ssmAPI
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

type Option func(*Client)

// WithCacheTTL sets how long a fetched value is served from memory. Zero
// disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	c := &Client{
		api:      api,
		cacheTTL: 5 * time.Minute,
		now:      time.Now,
		cache:    map[string]cached{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	if v, ok := c.lookup(name); ok {
		return v, nil
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	value := *out.Parameter.Value
	c.store(name, value)
	return value, nil
}

func (c *Client) lookup(name string) (string, bool) {
	if c.cacheTTL <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[name]
	if !ok || c.now().Sub(e.fetched) >= c.cacheTTL {
		return "", false
	}
	return e.value, true
}

func (c *Client) store(name, value string) {
	if c.cacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = map[string]cached{}
	}
	c.cache[name] = cached{value: value, fetched: c.now()}
}

// Resolve returns literal when set, otherwise the value of the named
// parameter. It backs settings that may come from the environment or SSM.
func Resolve(ctx context.Context, g Getter, literal, name string) (string, error) {
	if v := strings.TrimSpace(literal); v != "" {
		return v, nil
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("paramstore: neither a value nor a parameter name is configured")
	}
	if g == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	v, err := g.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}
