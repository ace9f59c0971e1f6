package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/log"
	"github.com/quarryhq/quarry/internal/manifest"
	"github.com/quarryhq/quarry/internal/objstore"
	"github.com/quarryhq/quarry/internal/uploader"
)

var uploadFlags struct {
	bucket     string
	region     string
	folder     string
	file       string
	prefix     string
	noManifest bool
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a folder or file to an S3 bucket",
	Long: `Upload a folder tree or a single file to an S3 bucket, creating the
bucket first if it does not exist.

Folder uploads are incremental: a manifest file (upload_manifest.json in the
working directory) records the modification time of every uploaded file, and
unchanged files are skipped on the next run. Pass --no-manifest to upload
everything unconditionally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload()
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFlags.bucket, "bucket", "", "target bucket (required)")
	uploadCmd.Flags().StringVar(&uploadFlags.region, "region", "", "bucket region (default from config)")
	uploadCmd.Flags().StringVar(&uploadFlags.folder, "folder", "", "folder to upload recursively")
	uploadCmd.Flags().StringVar(&uploadFlags.file, "file", "", "single file to upload")
	uploadCmd.Flags().StringVar(&uploadFlags.prefix, "prefix", "", "key prefix for uploaded objects")
	uploadCmd.Flags().BoolVar(&uploadFlags.noManifest, "no-manifest", false, "skip manifest tracking and upload everything")
	_ = uploadCmd.MarkFlagRequired("bucket")

	rootCmd.AddCommand(uploadCmd)
}

func runUpload() error {
	if (uploadFlags.folder == "") == (uploadFlags.file == "") {
		return fmt.Errorf("exactly one of --folder or --file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ObjectStore.Validate(); err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.Log.JSON, AddSource: cfg.Log.AddSource})

	region := uploadFlags.region
	if region == "" {
		region = cfg.ObjectStore.Region
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := objstore.New(ctx, objstore.Config{
		Region:    region,
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
	}, logger)
	if err != nil {
		return err
	}

	if err := client.CreateBucketIfAbsent(ctx, uploadFlags.bucket, region); err != nil {
		return fmt.Errorf("ensuring bucket %q: %w", uploadFlags.bucket, err)
	}

	if uploadFlags.file != "" {
		u := uploader.New(client, uploadFlags.bucket, nil, logger)
		if err := u.UploadSingle(ctx, uploadFlags.file, uploadFlags.prefix); err != nil {
			return err
		}
		fmt.Printf("Uploaded %s to bucket %s\n", uploadFlags.file, uploadFlags.bucket)
		return nil
	}

	var store *manifest.Store
	if !uploadFlags.noManifest {
		store = manifest.NewStore(manifest.DefaultPath)
	}

	u := uploader.New(client, uploadFlags.bucket, store, logger)
	uploaded, err := u.UploadTree(ctx, uploadFlags.folder, uploadFlags.prefix)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d files to bucket %s\n", uploaded, uploadFlags.bucket)
	return nil
}
