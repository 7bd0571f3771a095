// Package flight implements the engine.Model contract over Apache Arrow
// Flight. The model runs out of process (typically colocated with an
// accelerator); each Forward is one DoExchange round trip carrying the token
// window out and the logits back, and ResetCache is a DoAction. The KV-cache
// lives server side, keyed by the positions this client sends.
package flight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/parakeet-ml/parakeet/internal/engine"
)

const (
	// DefaultPort is the Flight endpoint port when none is given.
	DefaultPort = 3000

	actionResetCache = "reset_cache"

	metaMaxSeqLength = "max_seq_length"
)

// Client is a remote Model reached over Arrow Flight.
type Client struct {
	client  flight.Client
	addr    string
	timeout time.Duration
}

// NewClient creates a client for the given endpoint. Call Connect before use.
func NewClient(host string, port int) (*Client, error) {
	if host == "" {
		return nil, errors.New("empty flight host")
	}
	if port <= 0 {
		port = DefaultPort
	}
	return &Client{
		addr:    fmt.Sprintf("%s:%d", host, port),
		timeout: 30 * time.Second,
	}, nil
}

// Connect establishes the gRPC connection to the Flight server.
func (c *Client) Connect(_ context.Context) error {
	client, err := flight.NewClientWithMiddleware(c.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	c.client = client
	return nil
}

// Close disconnects from the Flight server.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Forward ships the window as one record batch and reads back one logits
// batch with a row per window entry.
func (c *Client) Forward(ctx context.Context, window []int, maxSeqLength int, positions []int) (engine.Logits, error) {
	if c.client == nil {
		return nil, errors.New("client not connected, call Connect() first")
	}
	if len(window) == 0 {
		return nil, errors.New("empty window")
	}
	if len(positions) != len(window) {
		return nil, fmt.Errorf("positions length %d does not match window length %d", len(positions), len(window))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.client.DoExchange(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open exchange: %w", err)
	}

	rec := buildWindowRecord(memory.DefaultAllocator, window, positions, maxSeqLength)
	defer rec.Release()

	wr := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	wr.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  []byte("forward"),
	})
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return nil, fmt.Errorf("failed to write window record: %w", err)
	}
	if err := wr.Close(); err != nil {
		return nil, fmt.Errorf("failed to close record writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send side: %w", err)
	}

	rd, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to open record reader: %w", err)
	}
	defer rd.Release()

	var logits engine.Logits
	for rd.Next() {
		rows, err := parseLogits(rd.Record())
		if err != nil {
			return nil, err
		}
		logits = append(logits, rows...)
	}
	if err := rd.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read logits stream: %w", err)
	}

	if len(logits) != len(window) {
		return nil, fmt.Errorf("server returned %d logits rows for window of %d", len(logits), len(window))
	}
	return logits, nil
}

// ResetCache asks the server to drop all cached positions.
func (c *Client) ResetCache(ctx context.Context) error {
	if c.client == nil {
		return errors.New("client not connected, call Connect() first")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.client.DoAction(ctx, &flight.Action{Type: actionResetCache})
	if err != nil {
		return fmt.Errorf("reset_cache action failed: %w", err)
	}
	// Drain acknowledgements
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reset_cache action failed: %w", err)
		}
	}
}

// buildWindowRecord packs the token window and its positions into a record
// batch. The sequence-length bound travels in the schema metadata so the
// server can size its cache without a side channel.
func buildWindowRecord(mem memory.Allocator, window []int, positions []int, maxSeqLength int) arrow.Record {
	md := arrow.NewMetadata([]string{metaMaxSeqLength}, []string{fmt.Sprintf("%d", maxSeqLength)})
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "token", Type: arrow.PrimitiveTypes.Int32},
		{Name: "position", Type: arrow.PrimitiveTypes.Int32},
	}, &md)

	tokens := array.NewInt32Builder(mem)
	defer tokens.Release()
	pos := array.NewInt32Builder(mem)
	defer pos.Release()

	for i := range window {
		tokens.Append(int32(window[i]))
		pos.Append(int32(positions[i]))
	}

	tokenArr := tokens.NewArray()
	defer tokenArr.Release()
	posArr := pos.NewArray()
	defer posArr.Release()

	return array.NewRecord(schema, []arrow.Array{tokenArr, posArr}, int64(len(window)))
}

// parseLogits unpacks a logits record: a single fixed-size-list column of
// float32, one list per window entry, list width = vocabulary size.
func parseLogits(rec arrow.Record) (engine.Logits, error) {
	if rec.NumCols() < 1 {
		return nil, errors.New("logits record has no columns")
	}
	col, ok := rec.Column(0).(*array.FixedSizeList)
	if !ok {
		return nil, fmt.Errorf("logits column has type %s, expected fixed_size_list<float32>", rec.Column(0).DataType())
	}
	listType, ok := col.DataType().(*arrow.FixedSizeListType)
	if !ok {
		return nil, fmt.Errorf("unexpected list type %s", col.DataType())
	}
	width := int(listType.Len())
	values, ok := col.ListValues().(*array.Float32)
	if !ok {
		return nil, fmt.Errorf("logits values have type %s, expected float32", col.ListValues().DataType())
	}

	rows := make(engine.Logits, rec.NumRows())
	for i := range rows {
		row := make([]float32, width)
		for j := 0; j < width; j++ {
			row[j] = values.Value(i*width + j)
		}
		rows[i] = row
	}
	return rows, nil
}
