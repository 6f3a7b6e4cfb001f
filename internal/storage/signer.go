// Package storage generates signed URLs against the R2 object store.
// Movie files are never served through the API process; paid buyers get a
// short-lived presigned GET, and bank-transfer proofs go up through a
// presigned PUT.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/tundex/cinemarket/internal/validate"
)

// Validation errors
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrEmptyKey        = errors.New("object key is empty")
)

// proofExtensions maps allowed proof MIME types to file extensions.
var proofExtensions = map[string]string{
	validate.MIMEImageJPEG: ".jpg",
	validate.MIMEImagePNG:  ".png",
	validate.MIMEImageWebP: ".webp",
	validate.MIMEAppPDF:    ".pdf",
}

// ProofUploadRequest asks for a presigned PUT URL for a payment proof.
type ProofUploadRequest struct {
	PurchaseID  string // Purchase the proof belongs to
	ContentType string // MIME type of the file
	SizeBytes   int64  // Size of the file in bytes
}

// SignedURL is a presigned URL with its object key and expiry.
type SignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signer generates presigned URLs for the movie and proof buckets.
type Signer struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	downloadTTL   time.Duration
	uploadTTL     time.Duration
	maxProofBytes int64
	timeNow       func() time.Time // For testability
}

// Config holds configuration for the storage signer.
type Config struct {
	Bucket             string
	AccessKeyID        string
	SecretAccessKey    string
	Endpoint           string
	DownloadTTLMinutes int // Default: 60 minutes
	UploadTTLMinutes   int // Default: 5 minutes
	MaxProofMB         int // Default: 10
}

// NewSigner creates a Signer with the given configuration.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	if cfg.DownloadTTLMinutes <= 0 {
		cfg.DownloadTTLMinutes = 60
	}
	if cfg.UploadTTLMinutes <= 0 {
		cfg.UploadTTLMinutes = 5
	}
	if cfg.MaxProofMB <= 0 {
		cfg.MaxProofMB = 10
	}

	// R2-compatible S3 client
	s3Client := s3.New(s3.Options{
		Region: "auto", // R2 uses auto region
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // No session token for R2
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	})

	return &Signer{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucket:        cfg.Bucket,
		downloadTTL:   time.Duration(cfg.DownloadTTLMinutes) * time.Minute,
		uploadTTL:     time.Duration(cfg.UploadTTLMinutes) * time.Minute,
		maxProofBytes: int64(cfg.MaxProofMB) * 1024 * 1024,
		timeNow:       time.Now,
	}, nil
}

// SignDownload generates a presigned GET URL for a stored movie file.
// The key comes from the movie record and is never caller-supplied.
func (s *Signer) SignDownload(ctx context.Context, key string) (*SignedURL, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}

	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.downloadTTL
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign download: %w", err)
	}

	return &SignedURL{
		URL:       presignedReq.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.downloadTTL),
	}, nil
}

// SignProofUpload generates a presigned PUT URL for a payment proof.
func (s *Signer) SignProofUpload(ctx context.Context, req ProofUploadRequest) (*SignedURL, error) {
	contentType, err := validate.MIMEType(req.ContentType, validate.AllowedProofTypes)
	if err != nil {
		return nil, ErrUnsupportedType
	}
	if req.SizeBytes <= 0 {
		return nil, errors.New("file size must be positive")
	}
	if req.SizeBytes > s.maxProofBytes {
		return nil, ErrFileTooLarge
	}

	key, err := proofObjectKey(contentType, req.PurchaseID)
	if err != nil {
		return nil, err
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.uploadTTL
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &SignedURL{
		URL:       presignedReq.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.uploadTTL),
	}, nil
}

// proofObjectKey creates a unique object key for a proof upload.
// Pattern: payment_proofs/{purchaseID}/{uuid}.ext
func proofObjectKey(contentType, purchaseID string) (string, error) {
	ext, ok := proofExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	sanitized := sanitizePathComponent(purchaseID)
	if sanitized == "" {
		return "", errors.New("invalid purchase ID")
	}

	return fmt.Sprintf("payment_proofs/%s/%s%s", sanitized, uuid.New().String(), ext), nil
}

// sanitizePathComponent removes potentially dangerous characters from path components.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
