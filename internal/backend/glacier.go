package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/aws/aws-sdk-go-v2/service/glacier/types"
	"golang.org/x/net/http2"

	"github.com/coldvault/coldvault/internal/config"
	"github.com/coldvault/coldvault/internal/events"
)

// GlacierBackend implements Backend against AWS Glacier.
type GlacierBackend struct {
	client    *glacier.Client
	accountID string
	logger    *events.Logger
}

// NewGlacier builds a Glacier-backed client. Credentials and region
// resolve through the default AWS chain; cfg.Vault.Region overrides
// the region when set.
func NewGlacier(ctx context.Context, cfg *config.Config, logger *events.Logger) (*GlacierBackend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(newHTTPClient(cfg.Upload.Timeout, logger)),
	}
	if cfg.Vault.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Vault.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	accountID := cfg.Vault.Account
	if accountID == "" {
		accountID = "-"
	}

	return &GlacierBackend{
		client:    glacier.NewFromConfig(awsCfg),
		accountID: accountID,
		logger:    logger.WithField("component", "glacier_backend"),
	}, nil
}

// newHTTPClient creates the transport with HTTP/2 support.
func newHTTPClient(timeout time.Duration, logger *events.Logger) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// InitiateMultipart starts a multipart upload. The description is
// base64-encoded so arbitrary metadata survives the backend's
// printable-characters restriction.
func (g *GlacierBackend) InitiateMultipart(ctx context.Context, vault string, partSize int64, description string) (string, error) {
	out, err := g.client.InitiateMultipartUpload(ctx, &glacier.InitiateMultipartUploadInput{
		AccountId:          aws.String(g.accountID),
		VaultName:          aws.String(vault),
		PartSize:           aws.String(strconv.FormatInt(partSize, 10)),
		ArchiveDescription: aws.String(base64.StdEncoding.EncodeToString([]byte(description))),
	})
	if err != nil {
		return "", fmt.Errorf("initiate multipart upload: %w", err)
	}

	return aws.ToString(out.UploadId), nil
}

// UploadPart transfers one part.
func (g *GlacierBackend) UploadPart(ctx context.Context, vault, uploadID, byteRange string, data []byte, checksum string) (string, error) {
	g.logger.WithFields(map[string]interface{}{
		"vault": vault,
		"range": byteRange,
		"size":  len(data),
	}).Debug("Uploading part")

	out, err := g.client.UploadMultipartPart(ctx, &glacier.UploadMultipartPartInput{
		AccountId: aws.String(g.accountID),
		VaultName: aws.String(vault),
		UploadId:  aws.String(uploadID),
		Range:     aws.String(byteRange),
		Checksum:  aws.String(checksum),
		Body:      bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("upload part %s: %w", byteRange, err)
	}

	return aws.ToString(out.Checksum), nil
}

// CompleteMultipart commits the upload.
func (g *GlacierBackend) CompleteMultipart(ctx context.Context, vault, uploadID string, totalSize int64, checksum string) (string, string, error) {
	out, err := g.client.CompleteMultipartUpload(ctx, &glacier.CompleteMultipartUploadInput{
		AccountId:   aws.String(g.accountID),
		VaultName:   aws.String(vault),
		UploadId:    aws.String(uploadID),
		ArchiveSize: aws.String(strconv.FormatInt(totalSize, 10)),
		Checksum:    aws.String(checksum),
	})
	if err != nil {
		return "", "", fmt.Errorf("complete multipart upload: %w", err)
	}

	return aws.ToString(out.ArchiveId), aws.ToString(out.Checksum), nil
}

// ListInProgressJobs returns ids of jobs that have not completed.
func (g *GlacierBackend) ListInProgressJobs(ctx context.Context, vault string) ([]string, error) {
	out, err := g.client.ListJobs(ctx, &glacier.ListJobsInput{
		AccountId: aws.String(g.accountID),
		VaultName: aws.String(vault),
		Completed: aws.String("false"),
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	ids := make([]string, 0, len(out.JobList))
	for _, job := range out.JobList {
		ids = append(ids, aws.ToString(job.JobId))
	}
	return ids, nil
}

// RequestInventoryJob starts an inventory retrieval job.
func (g *GlacierBackend) RequestInventoryJob(ctx context.Context, vault string) (string, error) {
	out, err := g.client.InitiateJob(ctx, &glacier.InitiateJobInput{
		AccountId: aws.String(g.accountID),
		VaultName: aws.String(vault),
		JobParameters: &types.JobParameters{
			Type:        aws.String("inventory-retrieval"),
			Format:      aws.String("JSON"),
			Description: aws.String("inventory-job"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("initiate inventory job: %w", err)
	}

	return aws.ToString(out.JobId), nil
}

// FetchJobOutput returns a finished job's output, or nil while the job
// is still listed as in progress.
func (g *GlacierBackend) FetchJobOutput(ctx context.Context, vault, jobID string) (*JobOutput, error) {
	running, err := g.ListInProgressJobs(ctx, vault)
	if err != nil {
		return nil, err
	}
	for _, id := range running {
		if id == jobID {
			return nil, nil
		}
	}

	out, err := g.client.GetJobOutput(ctx, &glacier.GetJobOutputInput{
		AccountId: aws.String(g.accountID),
		VaultName: aws.String(vault),
		JobId:     aws.String(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("get job output: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read job output: %w", err)
	}

	return &JobOutput{
		ContentType: aws.ToString(out.ContentType),
		Status:      int(out.Status),
		Body:        body,
	}, nil
}
