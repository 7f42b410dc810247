package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/forcing-engine/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	msgs      []kafkago.Message
	committed []kafkago.Message
	err       error
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if f.err != nil {
		return kafkago.Message{}, f.err
	}
	if len(f.msgs) == 0 {
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"product":"HRRR","file":"20230101_i06_f001_HRRR.grb2"}`),
		Topic:     "forcing-file-arrivals",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("nomads")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"product":"HRRR","file":"20230101_i06_f001_HRRR.grb2"}`, string(raw.Value))
	assert.Equal(t, "forcing-file-arrivals", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "nomads", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestReader_ExtractBatch_StopsAtBatchSize(t *testing.T) {
	f := &fakeFetcher{msgs: []kafkago.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	r := &Reader{reader: f, logger: discardLogger(), flushInterval: time.Second}

	batch, err := r.ExtractBatch(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].Offset)
	assert.Equal(t, int64(2), batch[1].Offset)
	assert.Empty(t, f.committed, "extract never commits")

	require.NoError(t, batch[1].Commit(context.Background()))
	require.Len(t, f.committed, 1)
	assert.Equal(t, int64(2), f.committed[0].Offset)
}

func TestReader_ExtractBatch_FlushesOnInterval(t *testing.T) {
	f := &fakeFetcher{msgs: []kafkago.Message{{Offset: 7}}}
	r := &Reader{reader: f, logger: discardLogger(), flushInterval: 20 * time.Millisecond}

	batch, err := r.ExtractBatch(context.Background(), 50)

	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestReader_ExtractBatch_FetchError(t *testing.T) {
	r := &Reader{reader: &fakeFetcher{err: errors.New("broker gone")}, logger: discardLogger(), flushInterval: time.Second}

	_, err := r.ExtractBatch(context.Background(), 10)

	assert.EqualError(t, err, "broker gone")
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2023, 1, 1, 7, 10, 0, 0, time.UTC)
	run, fh := 6, 1
	o := domain.Outcome{
		ID:           "hrrr-0123456789abcdef",
		Product:      "HRRR",
		Input:        "20230101_i06_f001_HRRR.grb2",
		Date:         "20230101",
		ModelRunHour: &run,
		ForecastHour: &fh,
		Stage:        "downscaled",
		Status:       "done",
		ProcessedAt:  now,
	}

	msg, err := serializeToMessage(o)
	require.NoError(t, err)

	assert.Equal(t, []byte("hrrr-0123456789abcdef"), msg.Key)
	assert.Contains(t, string(msg.Value), `"forecast_hour":1`)
	assert.NotContains(t, string(msg.Value), `"error"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, []byte("done"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: discardLogger()}

	err := w.LoadBatch(context.Background(), []domain.Outcome{
		{ID: "a", Product: "RAP", Status: "skipped"},
		{ID: "b", Product: "RAP", Status: "failed", ErrorKind: "naming", Error: "bad name"},
	})

	require.NoError(t, err)
	require.Len(t, fw.msgs, 2)
	var got domain.Outcome
	require.NoError(t, json.Unmarshal(fw.msgs[1].Value, &got))
	assert.Equal(t, "naming", got.ErrorKind)
}

func TestWriter_LoadBatch_Empty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	w := &Writer{writer: fw, logger: discardLogger()}

	assert.NoError(t, w.LoadBatch(context.Background(), nil))
}

func TestWriter_LoadBatch_WriteError(t *testing.T) {
	w := &Writer{writer: &fakeWriter{err: errors.New("leader not available")}, logger: discardLogger()}

	err := w.LoadBatch(context.Background(), []domain.Outcome{{ID: "a"}})

	assert.ErrorContains(t, err, "leader not available")
}
