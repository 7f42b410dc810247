//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/forcing-engine/internal/config"
	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/observability"
	"github.com/couchcryptid/forcing-engine/internal/pipeline"
	"github.com/couchcryptid/forcing-engine/internal/tool"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("forcing-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func arrivalJSON(t *testing.T, p domain.Product, file string) []byte {
	t.Helper()
	b, err := json.Marshal(domain.FileArrival{Product: p, File: file})
	require.NoError(t, err)
	return b
}

// stubRunner writes each invocation's output file in place of the NCL tools.
type stubRunner struct{}

func (stubRunner) Run(_ context.Context, inv tool.Invocation) error {
	p := map[string]string{}
	for _, param := range inv.Params {
		p[param.Name] = param.Value
	}
	out := p["outFile"]
	if dir, ok := p["outdir"]; ok {
		out = filepath.Join(dir, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, []byte(inv.Tool), 0o644)
}

type fixture struct {
	cfg *config.Forcing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	product := func(p domain.Product) config.ProductConfig {
		name := p.String()
		return config.ProductConfig{
			Product:            p,
			MaxForecastHour:    18,
			DataDir:            filepath.Join(root, "raw", name),
			RegridScript:       name + "2HYDRO.ncl",
			WeightFile:         "/weights/" + name + ".nc",
			DstGridName:        "/geo/geo_em.nc",
			RegridOutputDir:    filepath.Join(root, "regridded", name),
			DownscaleScript:    name + "_downscale.ncl",
			HgtData:            "/geo/" + name + "_hgt.nc",
			GeoData:            "/geo/geo_em.nc",
			DownscaleOutputDir: filepath.Join(root, "downscaled", name),
		}
	}
	return &fixture{cfg: &config.Forcing{
		NCLExe:        "ncl",
		LapseRateFile: "/geo/lapse.nc",
		ToolTimeout:   time.Minute,
		MaxConcurrent: 2,
		Lookback:      3,
		Products: map[domain.Product]config.ProductConfig{
			domain.HRRR: product(domain.HRRR),
			domain.RAP:  product(domain.RAP),
		},
	}}
}

// seedSubstitute places the RAP i04 f001 downscaled file that stands in for
// 20230101 i05 f000.
func (f *fixture) seedSubstitute(t *testing.T) {
	t.Helper()
	k, err := domain.NewKey(domain.RAP, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 4, 1)
	require.NoError(t, err)
	path := domain.Layout{Root: f.cfg.Products[domain.RAP].DownscaleOutputDir}.Path(k)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("rap i04"), 0o644))
}

func (f *fixture) orchestrator() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(f.cfg, stubRunner{}, discardLogger(), observability.NewMetricsForTesting())
}
