package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/reposage/reposage-api/internal/domain/model"
	"github.com/reposage/reposage-api/internal/domain/repository"
	"github.com/reposage/reposage-api/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
)

// Pipeline embeds chunks in fixed-size batches and upserts the resulting
// vector records into the index under the repository's namespace.
type Pipeline struct {
	router      repository.EmbeddingRouter
	vectors     repository.VectorRepository
	metrics     *metrics.Metrics
	batchSize   int
	concurrency int
}

// NewPipeline creates a Pipeline. batchSize bounds how many texts go into one
// embedding call, concurrency bounds how many batches run at once.
func NewPipeline(router repository.EmbeddingRouter, vectors repository.VectorRepository, m *metrics.Metrics, batchSize, concurrency int) *Pipeline {
	if batchSize < 1 {
		batchSize = 100
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		router:      router,
		vectors:     vectors,
		metrics:     m,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// Run embeds and upserts all chunks for repoID. A failed batch is logged and
// skipped; the remaining batches still run. Run never returns an error: it
// reports how many records were upserted and how many batches were lost, and
// always logs a terminal status line.
func (p *Pipeline) Run(ctx context.Context, repoID string, chunks []model.Chunk) (upserted, failedBatches int) {
	if len(chunks) == 0 {
		log.Printf("[Pipeline] No chunks to index for %s, nothing to do", repoID)
		return 0, 0
	}

	embedder := p.router.RouteEmbeddingTask(repository.TaskType("embedding"))
	if embedder == nil {
		log.Printf("[Pipeline] ⚠️ No embedding client available, aborting run for %s", repoID)
		return 0, (len(chunks) + p.batchSize - 1) / p.batchSize
	}

	totalItems := len(chunks)
	numBatches := (totalItems + p.batchSize - 1) / p.batchSize
	log.Printf("[Pipeline] Splitting %d chunks into %d batches (max %d/batch) for %s", totalItems, numBatches, p.batchSize, repoID)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i := 0; i < numBatches; i++ {
		start := i * p.batchSize
		end := start + p.batchSize
		if end > totalItems {
			end = totalItems
		}

		batch := chunks[start:end]
		batchIndex := i
		batchStart := start

		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, c := range batch {
				texts[j] = c.Text
			}

			vectors, err := embedder.Embed(ctx, texts)
			if err != nil {
				log.Printf("[Pipeline] ⚠️ Batch %d embedding failed for %s, skipping: %v", batchIndex, repoID, err)
				mu.Lock()
				failedBatches++
				mu.Unlock()
				p.metrics.BatchesFailed.Inc()
				return nil
			}

			records := make([]repository.VectorRecord, len(batch))
			for j, c := range batch {
				records[j] = repository.VectorRecord{
					ID:     fmt.Sprintf("%s-%d", repoID, batchStart+j),
					Vector: vectors[j],
					Text:   c.Text,
					Source: c.Source,
				}
			}

			if err := p.vectors.UpsertRecords(ctx, repoID, records); err != nil {
				log.Printf("[Pipeline] ⚠️ Batch %d upsert failed for %s, skipping: %v", batchIndex, repoID, err)
				mu.Lock()
				failedBatches++
				mu.Unlock()
				p.metrics.BatchesFailed.Inc()
				return nil
			}

			mu.Lock()
			upserted += len(records)
			mu.Unlock()
			log.Printf("[Pipeline] Batch %d/%d upserted (%d records) for %s", batchIndex+1, numBatches, len(records), repoID)
			return nil
		})
	}

	// Workers swallow their own failures, so Wait never returns an error.
	_ = g.Wait()

	p.metrics.VectorsUpserted.Add(float64(upserted))
	log.Printf("[Pipeline] ✅ Indexed %d/%d chunks for %s (%d of %d batches failed)", upserted, totalItems, repoID, failedBatches, numBatches)
	return upserted, failedBatches
}
