//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaContainer wraps a testcontainers Redpanda broker, a Kafka API
// compatible stand-in for the event log.
type RedpandaContainer struct {
	Container testcontainers.Container
	Seed      string
}

// NewRedpandaContainer starts a Redpanda broker. The container is cleaned up
// with the test.
func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "redpandadata/redpanda:v24.1.2")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}

	seed, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redpanda seed broker: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	return &RedpandaContainer{Container: container, Seed: seed}
}

// NewClient opens a franz-go client against the broker.
func (c *RedpandaContainer) NewClient(t *testing.T, opts ...kgo.Opt) *kgo.Client {
	t.Helper()

	client, err := kgo.NewClient(append([]kgo.Opt{kgo.SeedBrokers(c.Seed)}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create kafka client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}
