package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWorkerOptions(t *testing.T) {
	opts := DefaultWorkerOptions("warehouse-core")

	wo := workerOptions(opts)
	assert.Equal(t, 100, wo.MaxConcurrentActivityExecutionSize)
	assert.Equal(t, 100, wo.MaxConcurrentWorkflowTaskExecutionSize)
	assert.Equal(t, 4, wo.MaxConcurrentActivityTaskPollers)
	assert.Equal(t, 4, wo.MaxConcurrentWorkflowTaskPollers)
	assert.Equal(t, "warehouse-core", opts.TaskQueue)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:7233", cfg.HostPort)
	assert.Equal(t, "default", cfg.Namespace)
}
