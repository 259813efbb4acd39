package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Encrypted objects carry an 8-byte magic prefix. Objects without it are
// treated as plaintext.
const gcmMagic = "GCM3NCR0"

const (
	pbkdf2Iterations = 100000
	keyLen           = 32
	saltLen          = 16
	nonceLen         = 12
)

// S3Client stores source documents and extraction results in one bucket.
type S3Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// ObjectMeta carries the S3 metadata the pipeline cares about.
type ObjectMeta struct {
	OriginalName string
	ContentType  string
	Size         int64
	Encrypted    bool
}

// NewS3Client builds a client for the given bucket. Static credentials from
// the environment take precedence over the default chain, so the service can
// run against non-AWS S3 endpoints.
func NewS3Client(ctx context.Context, bucket string) (*S3Client, error) {
	var opts []func(*awscfg.LoadOptions) error
	if ak, sk := os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY"); ak != "" && sk != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("S3_ENDPOINT"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   bucket,
	}, nil
}

// Download fetches an object and decrypts it when it carries the GCM magic
// prefix. password may be empty for plaintext objects.
func (s *S3Client) Download(ctx context.Context, key, password string) ([]byte, *ObjectMeta, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read S3 object: %w", err)
	}

	meta := &ObjectMeta{}
	if result.ContentLength != nil {
		meta.Size = *result.ContentLength
	}
	if result.ContentType != nil {
		meta.ContentType = *result.ContentType
	}
	for k, v := range result.Metadata {
		if strings.ToLower(k) == "name" {
			meta.OriginalName = v
		}
	}

	if len(data) >= len(gcmMagic) && string(data[:len(gcmMagic)]) == gcmMagic {
		meta.Encrypted = true
		plain, derr := decryptGCM(data, password)
		if derr != nil {
			return nil, nil, fmt.Errorf("failed to decrypt object: %w", derr)
		}
		data = plain
	}

	log.Debug().
		Str("key", key).
		Bool("encrypted", meta.Encrypted).
		Int("size", len(data)).
		Msg("downloaded object")
	return data, meta, nil
}

// DownloadToFile fetches an object to a temp file and returns its path. The
// caller removes the file when done.
func (s *S3Client) DownloadToFile(ctx context.Context, key, password string) (string, *ObjectMeta, error) {
	data, meta, err := s.Download(ctx, key, password)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", "docextract-src-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), meta, nil
}

// Upload stores an object, encrypting with AES-GCM when a password is given.
func (s *S3Client) Upload(ctx context.Context, key string, data []byte, password string, meta *ObjectMeta) error {
	if password != "" {
		enc, err := encryptGCM(data, password)
		if err != nil {
			return fmt.Errorf("failed to encrypt object: %w", err)
		}
		data = enc
	}

	s3Meta := map[string]string{}
	contentType := "application/octet-stream"
	if meta != nil {
		if meta.OriginalName != "" {
			s3Meta["name"] = meta.OriginalName
		}
		if meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}
	if password != "" {
		s3Meta["encrypted"] = "true"
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    s3Meta,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("key", key).Int("size", len(data)).Bool("encrypted", password != "").Msg("uploaded object")
	return nil
}

// decryptGCM handles magic(8) + salt(16) + nonce(12) + ciphertext||tag.
func decryptGCM(data []byte, password string) ([]byte, error) {
	header := len(gcmMagic) + saltLen + nonceLen
	if len(data) < header+16 {
		return nil, fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}

	salt := data[len(gcmMagic) : len(gcmMagic)+saltLen]
	nonce := data[len(gcmMagic)+saltLen : header]
	ciphertext := data[header:]

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}

func encryptGCM(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	out := make([]byte, 0, len(gcmMagic)+saltLen+nonceLen+len(data)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, data, nil)
	return out, nil
}
