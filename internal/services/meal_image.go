package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"duo-checkin-backend/internal/apperr"
	cfgpkg "duo-checkin-backend/internal/config"
	"duo-checkin-backend/internal/policy"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadExpiry = 5 * time.Minute

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// MealImageUploadRequest represents a request for a presigned upload URL
type MealImageUploadRequest struct {
	ContentType string `json:"content_type" validate:"omitempty,oneof=image/jpeg image/png image/webp"`
}

// MealImageUploadResponse carries the presigned URL and the final image URL
// to store in the check-in's meal_images
type MealImageUploadResponse struct {
	UploadURL string `json:"upload_url"`
	ImageURL  string `json:"image_url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
}

// MealImageService issues presigned S3 uploads for meal photos
type MealImageService struct {
	s3Client *s3.Client
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint string
	eval     *policy.Evaluator
}

// NewMealImageService creates the S3 client. Static keys and a custom
// endpoint are used when configured, otherwise the default AWS chain.
func NewMealImageService(ctx context.Context, awsCfg cfgpkg.AWSConfig, eval *policy.Evaluator) (*MealImageService, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(awsCfg.Region),
	}
	if awsCfg.AccessKey != "" && awsCfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsCfg.AccessKey, awsCfg.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if awsCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(awsCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &MealImageService{
		s3Client: s3Client,
		presign:  s3.NewPresignClient(s3Client),
		bucket:   awsCfg.S3Bucket,
		region:   awsCfg.Region,
		endpoint: strings.TrimRight(awsCfg.Endpoint, "/"),
		eval:     eval,
	}, nil
}

// PresignUpload generates a presigned PUT URL for one meal image of today's check-in
func (s *MealImageService) PresignUpload(ctx context.Context, userID string, req MealImageUploadRequest) (*MealImageUploadResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}
	ext, ok := imageExtensions[req.ContentType]
	if !ok {
		return nil, apperr.ErrInvalidInput.Withf("unsupported content type %s", req.ContentType)
	}

	// meals/{user_id}/{date}/{image_id}.{ext}
	key := fmt.Sprintf("meals/%s/%s/%s.%s", userID, s.eval.Today(), uuid.New().String(), ext)

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &MealImageUploadResponse{
		UploadURL: request.URL,
		ImageURL:  s.objectURL(key),
		Key:       key,
		ExpiresIn: int(uploadExpiry.Seconds()),
	}, nil
}

func (s *MealImageService) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
