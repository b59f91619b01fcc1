package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub ledger topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection used to fan ledger events out.
type Client struct {
	client      *pubsub.Client
	projectID   string
	ledgerTopic string
}

// NewClient dials Pub/Sub and checks that the ledger topic is reachable.
// With cfg.CreateTopic set a missing topic is created instead of failing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic, err := topicPath(projectID, cfg.LedgerTopic)
	if err != nil {
		return nil, err
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, ledgerTopic: topic}

	created, err := c.checkTopic(ctx, cfg.CreateTopic)
	if err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"topic": topic, "topic_created": created})
		logg.Info(ctx, "pubsub.client_ready")
	}
	return c, nil
}

func (c *Client) checkTopic(ctx context.Context, create bool) (bool, error) {
	admin := c.client.TopicAdminClient
	_, err := admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.ledgerTopic})
	switch {
	case err == nil:
		return false, nil
	case status.Code(err) != codes.NotFound:
		return false, fmt.Errorf("checking topic %s: %w", c.ledgerTopic, err)
	case !create:
		return false, fmt.Errorf("topic %s does not exist", c.ledgerTopic)
	}

	_, err = admin.CreateTopic(ctx, &pubsubpb.Topic{Name: c.ledgerTopic})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return false, fmt.Errorf("creating topic %s: %w", c.ledgerTopic, err)
	}
	return true, nil
}

// Publisher returns a handle for name, which may be a bare topic id or a
// full resource path. It returns nil when the name cannot be resolved.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	topic, err := topicPath(c.projectID, name)
	if err != nil {
		return nil
	}
	return c.client.Publisher(topic)
}

// Ping is used by the publisher health loop.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.checkTopic(ctx, false)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func topicPath(projectID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errTopicRequired
	}
	if strings.HasPrefix(name, "projects/") {
		if !strings.Contains(name, "/topics/") {
			return "", fmt.Errorf("malformed topic path %q", name)
		}
		return name, nil
	}
	if projectID == "" {
		return "", errProjectIDRequired
	}
	return "projects/" + projectID + "/topics/" + name, nil
}
