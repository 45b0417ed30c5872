package qdrant

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/reposage/reposage-api/internal/domain/repository"
)

const maxRecvMsgSize = 32 * 1024 * 1024

// Client implements repository.VectorRepository using the official Qdrant
// Go SDK. All indexed repositories share one collection; the repo_id payload
// field partitions them.
type Client struct {
	client     *pb.Client
	collection string
	vectorSize uint64
}

// NewClient creates a new Qdrant client and ensures the target collection exists.
func NewClient(host string, port int, collection string, vectorSize uint64) (*Client, error) {
	client, err := pb.NewClient(&pb.Config{
		Host: host,
		Port: port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	c := &Client{
		client:     client,
		collection: collection,
		vectorSize: vectorSize,
	}

	// Ensure collection exists (create if not)
	if err := c.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %q: %w", collection, err)
	}

	log.Printf("[Qdrant] Connected to %s:%d, collection=%s", host, port, collection)
	return c, nil
}

// ensureCollection creates the collection if it does not already exist.
func (c *Client) ensureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &pb.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     c.vectorSize,
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}

	log.Printf("[Qdrant] Created collection %q (dim=%d)", c.collection, c.vectorSize)
	return nil
}

// UpsertRecords writes one point per record under the repository's namespace.
func (c *Client) UpsertRecords(ctx context.Context, repoID string, records []repository.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &pb.PointStruct{
			Id:      pb.NewIDUUID(deterministicID(rec.ID)),
			Vectors: pb.NewVectors(rec.Vector...),
			Payload: pb.NewValueMap(map[string]any{
				"repo_id":  repoID,
				"chunk_id": rec.ID,
				"text":     rec.Text,
				"source":   rec.Source,
			}),
		})
	}

	_, err := c.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: c.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}

	log.Printf("[Qdrant] Upserted %d points for repo %s", len(points), repoID)
	return nil
}

// Search runs a similarity query restricted to one repository's points.
func (c *Client) Search(ctx context.Context, repoID string, vector []float32, limit int) ([]repository.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	points, err := c.client.Query(ctx, &pb.QueryPoints{
		CollectionName: c.collection,
		Query:          pb.NewQuery(vector...),
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				pb.NewMatch("repo_id", repoID),
			},
		},
		Limit:       pb.PtrOf(uint64(limit)),
		WithPayload: pb.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed for repo %s: %w", repoID, err)
	}

	results := make([]repository.SearchResult, 0, len(points))
	for _, point := range points {
		results = append(results, resultFromPoint(point))
	}
	return results, nil
}

// DeleteRepo deletes all points belonging to a repository by filtering on
// the repo_id payload.
func (c *Client) DeleteRepo(ctx context.Context, repoID string) error {
	_, err := c.client.Delete(ctx, &pb.DeletePoints{
		CollectionName: c.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						pb.NewMatch("repo_id", repoID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed for repo %s: %w", repoID, err)
	}

	log.Printf("[Qdrant] Deleted points for repo %s", repoID)
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// deterministicID maps a record id to the stable UUID Qdrant expects as a
// point id. Re-indexing reproduces the same UUIDs, so upserts overwrite
// instead of duplicating.
func deterministicID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func resultFromPoint(point *pb.ScoredPoint) repository.SearchResult {
	res := repository.SearchResult{Score: point.GetScore()}

	payload := point.GetPayload()
	if v, ok := payload["chunk_id"]; ok {
		res.ID = v.GetStringValue()
	}
	if v, ok := payload["text"]; ok {
		res.Content = v.GetStringValue()
	}
	if v, ok := payload["source"]; ok {
		res.Source = v.GetStringValue()
	}
	if res.ID == "" {
		res.ID = point.GetId().GetUuid()
	}
	return res
}
