package seeds

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ap-tools/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Seed is one archived seed zip.
type Seed struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Service archives generated seeds in object storage so the host box and
// the players can fetch them later.
type Service struct {
	cfg    storage.Config
	client storage.Client
	logger *zap.Logger
	out    io.Writer
}

// NewService wires the seed archive together.
func NewService(cfg storage.Config, client storage.Client, logger *zap.Logger) *Service {
	return &Service{cfg: cfg, client: client, logger: logger, out: os.Stdout}
}

// SetOutput redirects the progress prints, for tests.
func (s *Service) SetOutput(w io.Writer) {
	s.out = w
}

// Publish uploads the zip under name (the file's basename when empty) and
// returns the stored name. The content hash and original filename travel
// along as user metadata, so Fetch can verify what it downloads.
func (s *Service) Publish(ctx context.Context, zipPath, name string) (string, error) {
	if !strings.HasSuffix(zipPath, ".zip") {
		return "", fmt.Errorf("only .zip seeds can be published: %s", zipPath)
	}
	if name == "" {
		name = filepath.Base(zipPath)
	}

	f, err := os.Open(zipPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	digest := hex.EncodeToString(hasher.Sum(nil))

	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	opts := minio.PutObjectOptions{
		ContentType: "application/zip",
		UserMetadata: map[string]string{
			"Sha256":   digest,
			"Filename": filepath.Base(zipPath),
		},
	}
	if _, err := s.client.PutObject(ctx, s.cfg.Bucket, s.cfg.Prefix+name, f, info.Size(), opts); err != nil {
		return "", fmt.Errorf("cannot publish seed: %w", err)
	}
	s.logger.Info("Published seed",
		zap.String("name", name),
		zap.String("bucket", s.cfg.Bucket),
		zap.Int64("size", info.Size()))
	return name, nil
}

// List returns every seed under the configured prefix.
func (s *Service) List(ctx context.Context) ([]Seed, error) {
	ch := s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    s.cfg.Prefix,
		Recursive: true,
	})

	var seeds []Seed
	for info := range ch {
		if info.Err != nil {
			return nil, fmt.Errorf("cannot list seeds: %w", info.Err)
		}
		seeds = append(seeds, Seed{
			Name:         strings.TrimPrefix(info.Key, s.cfg.Prefix),
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	return seeds, nil
}

// Fetch downloads the named seed to destPath. When the object carries a
// sha256 in its metadata, the download is verified against it before the
// final rename.
func (s *Service) Fetch(ctx context.Context, name, destPath string) error {
	objectName := s.cfg.Prefix + name

	stat, err := s.client.StatObject(ctx, s.cfg.Bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return fmt.Errorf("cannot fetch seed %s: %w", name, err)
	}
	expected := ""
	for key, value := range stat.UserMetadata {
		if strings.EqualFold(key, "Sha256") {
			expected = value
		}
	}

	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("cannot fetch seed %s: %w", name, err)
	}
	defer obj.Close()

	tmp := destPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), obj); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("cannot fetch seed %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if expected != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != expected {
			os.Remove(tmp)
			return fmt.Errorf("sha256 mismatch for %s: got %s, expected %s", name, got, expected)
		}
	}
	return os.Rename(tmp, destPath)
}

// Prune returns the seeds that deleting all but the keep newest would
// remove, oldest first. The actual deletion is DeleteSeeds, so the caller
// can ask for confirmation in between.
func (s *Service) Prune(ctx context.Context, keep int) ([]Seed, error) {
	if keep < 0 {
		return nil, errors.New("keep must not be negative")
	}
	seeds, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(seeds) <= keep {
		return nil, nil
	}

	sort.Slice(seeds, func(i, j int) bool {
		return seeds[i].LastModified.After(seeds[j].LastModified)
	})
	victims := seeds[keep:]
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].LastModified.Before(victims[j].LastModified)
	})
	return victims, nil
}

// DeleteSeeds removes the given seeds from the archive.
func (s *Service) DeleteSeeds(ctx context.Context, victims []Seed) error {
	for _, seed := range victims {
		fmt.Fprintln(s.out, "deleting: "+seed.Name)
		if err := s.client.RemoveObject(ctx, s.cfg.Bucket, s.cfg.Prefix+seed.Name, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("cannot delete seed %s: %w", seed.Name, err)
		}
		s.logger.Info("Deleted seed", zap.String("name", seed.Name))
	}
	return nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("cannot check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	s.logger.Info("Creating bucket", zap.String("bucket", s.cfg.Bucket))
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("cannot create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}
