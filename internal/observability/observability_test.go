package observability

import (
	"context"
	"testing"

	"chatlimit/internal/models"
	"chatlimit/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(metrics, tracing bool) *models.Config {
	cfg := models.NewDefaultConfig()
	cfg.Observability.ServiceName = "test-service"
	cfg.Metrics.Enabled = metrics
	cfg.Observability.Tracing.Enabled = tracing
	cfg.Observability.Tracing.Exporter = "stdout"
	return cfg
}

func TestSetup_MetricsOnly(t *testing.T) {
	provider, err := Setup(testConfig(true, false), version.Info{})
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.promExporter)
	assert.Nil(t, provider.tracerProvider)
	assert.True(t, provider.MetricsEnabled())

	err = provider.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestSetup_TracingStdout(t *testing.T) {
	provider, err := Setup(testConfig(false, true), version.Info{})
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.tracerProvider)
	assert.Nil(t, provider.promExporter)
	assert.False(t, provider.MetricsEnabled())

	err = provider.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestSetup_BothEnabled(t *testing.T) {
	cfg := testConfig(true, true)
	cfg.Observability.Tracing.SampleRate = 0.5

	provider, err := Setup(cfg, version.Info{Version: "1.2.3", InstanceID: "abc"})
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.tracerProvider)
	assert.NotNil(t, provider.promExporter)

	err = provider.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestSetup_NothingEnabled(t *testing.T) {
	provider, err := Setup(testConfig(false, false), version.Info{})
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Nil(t, provider.tracerProvider)
	assert.Nil(t, provider.meterProvider)

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestSetup_UnsupportedExporter(t *testing.T) {
	cfg := testConfig(false, true)
	cfg.Observability.Tracing.Exporter = "zipkin"

	_, err := Setup(cfg, version.Info{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace exporter")
}

func TestMetricsEnabled_NilProvider(t *testing.T) {
	var p *Provider
	assert.False(t, p.MetricsEnabled())
}

func TestGetEnvironment(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "")
		t.Setenv("DEPLOYMENT_ENV", "")
		assert.Equal(t, "development", getEnvironment())
	})

	t.Run("ENVIRONMENT wins", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DEPLOYMENT_ENV", "staging")
		assert.Equal(t, "production", getEnvironment())
	})

	t.Run("DEPLOYMENT_ENV fallback", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "")
		t.Setenv("DEPLOYMENT_ENV", "staging")
		assert.Equal(t, "staging", getEnvironment())
	})
}
