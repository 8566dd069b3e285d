package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// Retriever is the part of a Connector that streams file contents.
type Retriever interface {
	Retrieve(remotePath string) (io.ReadCloser, error)
}

// DownloadTransferer copies each new file into a local storage root over the
// shared watcher session.
type DownloadTransferer struct {
	source    Retriever
	root      string
	chunkSize int
	log       zerolog.Logger
}

func NewDownloadTransferer(source Retriever, root string, chunkSize int, log zerolog.Logger) *DownloadTransferer {
	return &DownloadTransferer{
		source:    source,
		root:      root,
		chunkSize: chunkSize,
		log:       log.With().Str("component", "download").Logger(),
	}
}

func (d *DownloadTransferer) Name() string { return "download" }

func (d *DownloadTransferer) Transfer(ctx context.Context, job *Job) error {
	localPath, err := resolveRelativePath(job.File, d.root)
	if err != nil {
		return err
	}
	n, err := d.download(job, localPath)
	job.Bytes = n
	return err
}

func (d *DownloadTransferer) download(job *Job, localPath string) (int64, error) {
	log := d.log.With().Str("job", job.ID).Logger()
	log.Debug().Str("path", localPath).Msg("Downloading new file")

	r, err := d.source.Retrieve(job.File)
	if err != nil {
		return 0, err
	}
	n, err := saveStaged(localPath, r, d.chunkSize)
	if err != nil {
		return n, err
	}

	log.Debug().Int64("bytes", n).Str("path", localPath).Msg("Download complete")
	return n, nil
}
