package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	fig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/chatterng/chatterx/config"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// MediaUpload is the stored-object reference triple attached to a non-text
// message once the raw upload has been written to storage.
type MediaUpload struct {
	StorageRef   string
	OriginalName string
	MimeType     string
	SizeBytes    int64
}

// StorageService owns the object store. Callers treat refs as opaque URLs.
type StorageService interface {
	UploadMessageMedia(mediaFile *multipart.FileHeader, kind string, userID uint) (*MediaUpload, error)
	UploadAvatar(mediaFile *multipart.FileHeader, userID uint) (string, error)
	DeleteObject(ref string) error
}

type s3Storage struct {
	Config *config.Config
}

func NewStorageService(conf *config.Config) StorageService {
	return &s3Storage{Config: conf}
}

const (
	maxImageSize = 10 * 1024 * 1024
	maxMediaSize = 80 * 1024 * 1024
	maxAvatarDim = 512
)

func generateUniqueFilename(extension string) string {
	return fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.New(), extension)
}

// kindForContentType maps a sniffed MIME type onto a message kind. Anything
// not an image, video or audio falls back to the generic file kind.
func kindForContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"), contentType == "application/ogg":
		return "audio"
	}
	return "file"
}

// UploadMessageMedia sniffs the real content type from the first bytes,
// checks it agrees with the declared kind and streams the file to S3.
func (s *s3Storage) UploadMessageMedia(mediaFile *multipart.FileHeader, kind string, userID uint) (*MediaUpload, error) {
	file, err := mediaFile.Open()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open media file")
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to sniff media file")
	}
	contentType := http.DetectContentType(buffer[:n])
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to rewind media file")
	}

	if detected := kindForContentType(contentType); kind != "file" && detected != kind {
		return nil, fmt.Errorf("file content is %s, not %s", detected, kind)
	}

	limit := int64(maxMediaSize)
	if kind == "image" {
		limit = maxImageSize
	}
	if mediaFile.Size > limit {
		return nil, fmt.Errorf("file size exceeds the maximum allowed size")
	}

	fileKey := fmt.Sprintf("media/%s/%d_%s", kind, userID, generateUniqueFilename(filepath.Ext(mediaFile.Filename)))
	ref, err := s.putObject(fileKey, file, contentType)
	if err != nil {
		return nil, err
	}

	return &MediaUpload{
		StorageRef:   ref,
		OriginalName: mediaFile.Filename,
		MimeType:     contentType,
		SizeBytes:    mediaFile.Size,
	}, nil
}

// UploadAvatar decodes, square-crops and downscales the image before
// uploading, so avatars are always bounded JPEGs.
func (s *s3Storage) UploadAvatar(mediaFile *multipart.FileHeader, userID uint) (string, error) {
	if mediaFile.Size > maxImageSize {
		return "", fmt.Errorf("avatar file size exceeds the maximum allowed size")
	}
	file, err := mediaFile.Open()
	if err != nil {
		return "", errors.Wrap(err, "failed to open avatar file")
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode avatar image")
	}

	cropped := imaging.Fill(img, maxAvatarDim, maxAvatarDim, imaging.Center, imaging.Lanczos)
	thumbnail := resize.Resize(maxAvatarDim, 0, cropped, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumbnail, nil); err != nil {
		return "", errors.Wrap(err, "failed to encode avatar image")
	}

	fileKey := fmt.Sprintf("avatars/%d_%s", userID, generateUniqueFilename(".jpg"))
	return s.putObject(fileKey, bytes.NewReader(buf.Bytes()), "image/jpeg")
}

// DeleteObject removes a previously uploaded object by its ref URL. Refs that
// do not point at our bucket are ignored.
func (s *s3Storage) DeleteObject(ref string) error {
	prefix := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", s.Config.AwsBucket, s.Config.AwsRegion)
	if !strings.HasPrefix(ref, prefix) {
		return nil
	}
	fileKey := strings.TrimPrefix(ref, prefix)

	client, err := s.client()
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.Config.AwsBucket),
		Key:    aws.String(fileKey),
	})
	return errors.Wrap(err, "failed to delete object from S3")
}

func (s *s3Storage) client() (*s3.Client, error) {
	cfg, err := fig.LoadDefaultConfig(context.TODO(),
		fig.WithRegion(s.Config.AwsRegion),
		fig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.Config.AwsAccessKeyID, s.Config.AwsSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load AWS config")
	}
	return s3.NewFromConfig(cfg), nil
}

func (s *s3Storage) putObject(fileKey string, body io.Reader, contentType string) (string, error) {
	if s.Config.AwsBucket == "" {
		return "", fmt.Errorf("S3 bucket name is not configured")
	}
	client, err := s.client()
	if err != nil {
		return "", err
	}

	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(s.Config.AwsBucket),
		Key:         aws.String(fileKey),
		Body:        body,
		ACL:         "public-read",
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to upload file to S3")
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Config.AwsBucket, s.Config.AwsRegion, fileKey), nil
}
