package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/andresuchdata/stockinsight/internal/storage"
	"github.com/andresuchdata/stockinsight/pkg/logger"
	"github.com/urfave/cli/v2"
)

func pullFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-endpoint", EnvVars: []string{"STORAGE_ENDPOINT"}, Required: true},
		&cli.StringFlag{Name: "storage-access-key", EnvVars: []string{"STORAGE_ACCESS_KEY"}},
		&cli.StringFlag{Name: "storage-secret-key", EnvVars: []string{"STORAGE_SECRET_KEY"}},
		&cli.StringFlag{Name: "storage-bucket", EnvVars: []string{"STORAGE_BUCKET"}, Value: "reports"},
		&cli.StringFlag{Name: "storage-region", EnvVars: []string{"STORAGE_REGION"}, Value: "us-east-1"},
		&cli.BoolFlag{Name: "storage-use-ssl", EnvVars: []string{"STORAGE_USE_SSL"}, Value: true},
		&cli.StringFlag{Name: "prefix", Usage: "Object key prefix holding the seed files", Value: "seeds/"},
		newDataDirFlag(),
	}
}

func runPull(c *cli.Context) error {
	client, err := storage.NewMinioClient(config.StorageConfig{
		Endpoint:  c.String("storage-endpoint"),
		AccessKey: c.String("storage-access-key"),
		SecretKey: c.String("storage-secret-key"),
		Bucket:    c.String("storage-bucket"),
		Region:    c.String("storage-region"),
		UseSSL:    c.Bool("storage-use-ssl"),
	})
	if err != nil {
		return err
	}

	paths, err := downloadCSVObjects(c.Context, client, c.String("prefix"), c.String("data-dir"))
	if err != nil {
		return err
	}
	logger.Log.Info().Int("files", len(paths)).Str("dir", c.String("data-dir")).Msg("seed files downloaded")
	return nil
}

// downloadCSVObjects mirrors every CSV object under prefix into destDir,
// keeping the key layout relative to prefix.
func downloadCSVObjects(ctx context.Context, client storage.ObjectStorage, prefix, destDir string) ([]string, error) {
	listPrefix := strings.TrimSpace(prefix)
	objects, err := client.ListObjects(ctx, listPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects for prefix %s: %w", listPrefix, err)
	}

	var keys []string
	for _, obj := range objects {
		if strings.HasSuffix(strings.ToLower(obj.Key), ".csv") {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no CSV files found for prefix %s", prefix)
	}

	localPaths := make([]string, 0, len(keys))
	for _, key := range keys {
		localPath := filepath.Join(destDir, objectRelativePath(listPrefix, key))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare directory for %s: %w", localPath, err)
		}
		if err := client.DownloadObject(ctx, key, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

func objectRelativePath(prefix, key string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return key
	}
	rel := strings.TrimPrefix(key, trimmed+"/")
	if rel == "" || rel == key {
		return filepath.Base(key)
	}
	return rel
}
