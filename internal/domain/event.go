package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// FileArrival announces a raw input file ready for processing. It is the
// JSON payload of source topic messages.
type FileArrival struct {
	Product Product `json:"product"`
	File    string  `json:"file"`
}

// Outcome is the processing result published to the sink topic.
type Outcome struct {
	ID           string    `json:"id"`
	Product      string    `json:"product"`
	Input        string    `json:"input"`
	Date         string    `json:"date,omitempty"`
	ModelRunHour *int      `json:"model_run_hour,omitempty"`
	ForecastHour *int      `json:"forecast_hour,omitempty"`
	Stage        string    `json:"stage"`
	Path         string    `json:"path,omitempty"`
	Status       string    `json:"status"`
	FailedStep   string    `json:"failed_step,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}
