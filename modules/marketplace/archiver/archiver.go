// Package archiver periodically exports marketplace events to parquet files
// in an S3 bucket for off-chain reconciliation and analytics.
package archiver

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	cstream "github.com/planxnx/concurrent-stream"
	"github.com/samber/lo"
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
	"github.com/stkolmagorov/marketplace/pkg/logger"
	"github.com/stkolmagorov/marketplace/pkg/logger/slogx"
	"github.com/stkolmagorov/marketplace/pkg/parquetutils"
	"golang.org/x/sync/errgroup"
)

const (
	encodeConcurrency = 4
	archiveChunkSize  = 1000
)

type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	Bucket    string        `mapstructure:"bucket"`
	Prefix    string        `mapstructure:"prefix"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int32         `mapstructure:"batch_size"`
}

// Archiver drains the event log into parquet files, one flush per interval.
// It remembers the next sequence to export in memory only; on restart it
// re-exports from the beginning, which is safe because object keys are
// derived from sequence ranges and uploads are idempotent.
type Archiver struct {
	marketplaceDg datagateway.MarketplaceDataGateway
	uploader      *manager.Uploader
	conf          Config
	nextSequence  uint64
}

func New(ctx context.Context, marketplaceDg datagateway.MarketplaceDataGateway, conf Config) (*Archiver, error) {
	if conf.Interval <= 0 {
		conf.Interval = time.Minute
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = 10000
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	s3Client := s3.NewFromConfig(sdkConfig)
	return &Archiver{
		marketplaceDg: marketplaceDg,
		uploader:      manager.NewUploader(s3Client),
		conf:          conf,
	}, nil
}

// Run flushes events until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.conf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.flush(ctx); err != nil {
				logger.ErrorContext(ctx, "failed to archive events", slogx.Error(err))
			}
		}
	}
}

type eventRow struct {
	Sequence  int64   `parquet:"name=sequence, type=INT64"`
	Kind      string  `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecordId  int64   `parquet:"name=record_id, type=INT64"`
	Action    string  `parquet:"name=action, type=BYTE_ARRAY, convertedtype=UTF8"`
	Caller    string  `parquet:"name=caller, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payload   *string `parquet:"name=payload, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CreatedAt int64   `parquet:"name=created_at, type=INT64"`
}

type archive struct {
	key  string
	data []byte
	err  error
}

func (a *Archiver) flush(ctx context.Context) error {
	events, err := a.marketplaceDg.GetEventsAfter(ctx, a.nextSequence, a.conf.BatchSize)
	if err != nil {
		return errors.Wrap(err, "failed to load events")
	}
	if len(events) == 0 {
		return nil
	}

	out := make(chan *archive)
	stream := cstream.NewStream(ctx, encodeConcurrency, out)

	go func() {
		defer close(out)
		_ = stream.Wait()
	}()

	go func() {
		defer stream.Close()
		for _, chunk := range lo.Chunk(events, archiveChunkSize) {
			chunk := chunk
			stream.Go(func() *archive {
				return a.encodeChunk(chunk)
			})
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for ar := range out {
			if ar == nil {
				continue
			}
			if ar.err != nil {
				return errors.WithStack(ar.err)
			}
			_, err := a.uploader.Upload(gctx, &s3.PutObjectInput{
				Bucket: aws.String(a.conf.Bucket),
				Key:    aws.String(ar.key),
				Body:   bytes.NewReader(ar.data),
			})
			if err != nil {
				return errors.Wrapf(err, "failed to upload archive %s", ar.key)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return errors.WithStack(err)
	}

	a.nextSequence = events[len(events)-1].Sequence + 1
	logger.InfoContext(ctx, "archived events",
		slogx.Int("count", len(events)),
		slogx.Uint64("next_sequence", a.nextSequence),
	)
	return nil
}

func (a *Archiver) encodeChunk(chunk []entity.MarketplaceEvent) *archive {
	rows := make([]eventRow, 0, len(chunk))
	for _, event := range chunk {
		row := eventRow{
			Sequence:  int64(event.Sequence),
			Kind:      string(event.Kind),
			RecordId:  int64(event.RecordID),
			Action:    string(event.Action),
			Caller:    event.Caller,
			CreatedAt: event.CreatedAt.UnixMilli(),
		}
		if len(event.Payload) > 0 {
			payload := string(event.Payload)
			row.Payload = &payload
		}
		rows = append(rows, row)
	}
	data, err := parquetutils.WriteAll(rows)
	if err != nil {
		return &archive{err: errors.Wrap(err, "failed to encode events chunk")}
	}
	key := fmt.Sprintf("%sevents-%012d-%012d.parquet", a.conf.Prefix, chunk[0].Sequence, chunk[len(chunk)-1].Sequence)
	return &archive{key: key, data: data}
}
