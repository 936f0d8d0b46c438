// Package mylgreport writes periodic JSON reports to S3 under a
// service/report/date/hour key layout and reads the latest one back.
package mylgreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/rs/zerolog"
)

type GenerateCallback func(ctx context.Context) (interface{}, error)

type Handler struct {
	service mylgcli.Service
	logger  zerolog.Logger
	s3      s3iface.S3API
	now     func() time.Time

	reportName string

	generate GenerateCallback
}

func ReportKey(serviceName, reportName string, timestamp time.Time) string {
	return fmt.Sprintf("%v/%v/%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"), timestamp.Format("15"), timestamp.Format("2006-01-02-15:04:05.json"))
}

func NewHandler(
	service mylgcli.Service,
	reportName string,
	generate GenerateCallback,
) *Handler {
	session := session.Must(session.NewSession(aws.NewConfig()))
	return NewHandlerWithS3(service, s3.New(session), reportName, generate)
}

func NewHandlerWithS3(
	service mylgcli.Service,
	s3Api s3iface.S3API,
	reportName string,
	generate GenerateCallback,
) *Handler {
	return &Handler{
		service:    service,
		logger:     mylgcli.Logger(service),
		s3:         s3Api,
		now:        time.Now,
		reportName: reportName,
		generate:   generate,
	}
}

func (h *Handler) Generate(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("generating report")
	report, err := h.generate(h.logger.WithContext(ctx))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to generate report")
		return err
	}
	reportBytes, err := json.Marshal(report)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal report")
		return err
	}

	now := h.now().UTC()
	if mylgcli.CommonOpts.Dry {
		if ReportOpts.OutFile == "" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		if err := os.MkdirAll(path.Dir(ReportOpts.OutFile), 0755); err != nil {
			return err
		}
		h.logger.Info().Str("bucket", ReportOpts.Bucket).Str("filename", ReportOpts.OutFile).Int("size", len(reportBytes)).Msg("dry run, saving report locally")
		return os.WriteFile(ReportOpts.OutFile, reportBytes, 0644)
	}

	filename := ReportKey(h.service.Name, h.reportName, now)
	h.logger.Info().Str("bucket", ReportOpts.Bucket).Str("filename", filename).Int("size", len(reportBytes)).Msg("saving report to s3")
	_, err = h.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ReportOpts.Bucket),
		Body:        bytes.NewReader(reportBytes),
		Key:         aws.String(filename),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save report %v: %w", filename, err)
	}
	return nil
}

// maxLookbackDays bounds how far back GetRawAsOf searches for a report.
const maxLookbackDays = 5

// GetRawAsOf returns the newest report written on or before timestamp's day,
// walking back a day at a time, along with its key.
func GetRawAsOf(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, timestamp time.Time) ([]byte, string, error) {
	day := timestamp.UTC()
	for i := 0; i <= maxLookbackDays; i++ {
		prefix := fmt.Sprintf("%v/%v/%v", serviceName, reportName, day.Format("2006-01-02"))
		key, err := newestKey(ctx, s3Api, bucket, prefix)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read most recent %v report: %w", reportName, err)
		}
		if key != "" {
			data, err := getObject(ctx, s3Api, bucket, key)
			if err != nil {
				return nil, "", fmt.Errorf("failed to read most recent file in %v: %w", prefix, err)
			}
			return data, key, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return nil, "", fmt.Errorf("failed to find a %v report in the %v days before %v", reportName, maxLookbackDays, timestamp.Format(time.RFC3339))
}

// newestKey returns the lexically greatest key under prefix, which the key
// layout makes the most recent, or "" when there is none.
func newestKey(ctx context.Context, s3Api s3iface.S3API, bucket, prefix string) (string, error) {
	var newest string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	err := s3Api.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, object := range page.Contents {
			if key := aws.StringValue(object.Key); key > newest {
				newest = key
			}
		}
		return true
	})
	if err != nil {
		return "", fmt.Errorf("failed to list objects: %w", err)
	}
	return newest, nil
}

func getObject(ctx context.Context, s3Api s3iface.S3API, bucket, key string) ([]byte, error) {
	output, err := s3Api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object, %v: %w", key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 response, %v: %w", key, err)
	}
	return data, nil
}

func GetLatest(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, obj any) (string, error) {
	now := time.Now().UTC()
	data, filename, err := GetRawAsOf(ctx, s3Api, bucket, serviceName, reportName, now)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return "", fmt.Errorf("failed to unmarshal latest report: %w", err)
	}
	return filename, nil
}

func (h *Handler) Start() error {
	switch {
	case ReportOpts.GetLatest:
		return h.writeLatest(context.Background())

	case mylgcli.CommonOpts.Console:
		return h.Generate(context.Background(), nil)

	default:
		lambda.Start(h.Generate)
	}
	return nil
}

// writeLatest copies the newest stored report to --out-file, or pretty
// prints it to stdout.
func (h *Handler) writeLatest(ctx context.Context) error {
	data, key, err := GetRawAsOf(ctx, h.s3, ReportOpts.Bucket, h.service.Name, h.reportName, h.now().UTC())
	if err != nil {
		return err
	}
	h.logger.Info().Str("bucket", ReportOpts.Bucket).Str("filename", key).Msg("found latest report")

	if ReportOpts.OutFile == "" {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			return err
		}
		_, err = os.Stdout.Write(pretty.Bytes())
		return err
	}
	if err := os.MkdirAll(path.Dir(ReportOpts.OutFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(ReportOpts.OutFile, data, 0644)
}
