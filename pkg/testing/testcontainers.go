package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/wms-platform/warehouse-core/pkg/mongodb"
)

// MongoImage is the image used by integration tests
const MongoImage = "mongo:7"

// StartMongo starts a disposable MongoDB container and returns a connected
// client on a fresh database. The container is removed when t finishes.
func StartMongo(t *testing.T) *mongodb.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongodb.Run(ctx, MongoImage)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start mongodb container")

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := mongodb.DefaultConfig()
	cfg.URI = uri
	cfg.Database = "warehouse_test"
	cfg.MinPoolSize = 0

	client, err := mongodb.NewClient(ctx, cfg)
	require.NoError(t, err, "connect to mongodb container")
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	return client
}

// AssertEventually asserts that condition becomes true within timeout
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	require.Eventually(t, condition, timeout, 10*time.Millisecond, message)
}
