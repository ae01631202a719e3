package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"dining-concierge/internal/domain"
)

const (
	catalogKey        = "business_id"
	cuisineIndex      = "cuisine-index"
	batchGetMax       = 100
	unprocessedPasses = 3
)

// ErrRestaurantNotFound is returned by GetByID for an unknown identifier.
var ErrRestaurantNotFound = errors.New("repository: restaurant not found")

// Catalog reads the restaurant table: partition key business_id and a global
// secondary index on the lowercase cuisine key.
type Catalog struct {
	api       dynamodbAPI
	tableName string
}

func NewCatalog(api dynamodbAPI, tableName string) (*Catalog, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Catalog{api: api, tableName: tableName}, nil
}

// FindByCuisine returns up to limit identifiers from the cuisine index.
func (c *Catalog) FindByCuisine(ctx context.Context, cuisine string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var (
		ids  []string
		from map[string]types.AttributeValue
	)
	for len(ids) < limit {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(c.tableName),
			IndexName:                aws.String(cuisineIndex),
			KeyConditionExpression:   aws.String("#c = :cuisine"),
			ExpressionAttributeNames: map[string]string{"#c": "cuisine", "#id": catalogKey},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cuisine": &types.AttributeValueMemberS{Value: cuisine},
			},
			ProjectionExpression: aws.String("#id"),
			Limit:                aws.Int32(int32(limit - len(ids))),
			ExclusiveStartKey:    from,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: FindByCuisine query: %w", err)
		}
		for _, item := range out.Items {
			id, err := strAttr(item, catalogKey)
			if err != nil {
				return nil, fmt.Errorf("repository: FindByCuisine decode: %w", err)
			}
			ids = append(ids, id)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		from = out.LastEvaluatedKey
	}
	return ids, nil
}

// GetByID fetches one record.
func (c *Catalog) GetByID(ctx context.Context, id string) (domain.RestaurantRecord, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       restaurantKey(id),
	})
	if err != nil {
		return domain.RestaurantRecord{}, fmt.Errorf("repository: GetByID get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.RestaurantRecord{}, ErrRestaurantNotFound
	}
	rec, err := itemToRestaurant(out.Item)
	if err != nil {
		return domain.RestaurantRecord{}, fmt.Errorf("repository: GetByID decode: %w", err)
	}
	return rec, nil
}

// GetByIDs fetches records in chunks of 100 keys, retrying unprocessed keys.
// When a batch call fails the chunk falls back to single reads. Unknown ids
// are skipped; the result follows the order of ids.
func (c *Catalog) GetByIDs(ctx context.Context, ids []string) ([]domain.RestaurantRecord, error) {
	found := make(map[string]domain.RestaurantRecord, len(ids))
	for start := 0; start < len(ids); start += batchGetMax {
		end := min(start+batchGetMax, len(ids))
		chunk := ids[start:end]
		if err := c.batchGet(ctx, chunk, found); err != nil {
			slog.WarnContext(ctx, "batch get failed, falling back to single reads",
				"table", c.tableName, "keys", len(chunk), "err", err)
			if err := c.getEach(ctx, chunk, found); err != nil {
				return nil, err
			}
		}
	}

	out := make([]domain.RestaurantRecord, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, id := range ids {
		rec, ok := found[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, rec)
	}
	return out, nil
}

func (c *Catalog) batchGet(ctx context.Context, ids []string, found map[string]domain.RestaurantRecord) error {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	dedup := make(map[string]bool, len(ids))
	for _, id := range ids {
		if dedup[id] {
			continue
		}
		dedup[id] = true
		keys = append(keys, restaurantKey(id))
	}
	request := map[string]types.KeysAndAttributes{c.tableName: {Keys: keys}}

	for pass := 0; pass < unprocessedPasses && len(request) > 0; pass++ {
		out, err := c.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return fmt.Errorf("repository: GetByIDs batch get: %w", err)
		}
		for _, item := range out.Responses[c.tableName] {
			rec, err := itemToRestaurant(item)
			if err != nil {
				return fmt.Errorf("repository: GetByIDs decode: %w", err)
			}
			found[rec.ID] = rec
		}
		request = out.UnprocessedKeys
	}
	if len(request) > 0 {
		return fmt.Errorf("repository: GetByIDs: %d keys still unprocessed", len(request[c.tableName].Keys))
	}
	return nil
}

func (c *Catalog) getEach(ctx context.Context, ids []string, found map[string]domain.RestaurantRecord) error {
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		rec, err := c.GetByID(ctx, id)
		if errors.Is(err, ErrRestaurantNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		found[id] = rec
	}
	return nil
}

func restaurantKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		catalogKey: &types.AttributeValueMemberS{Value: id},
	}
}

func itemToRestaurant(item map[string]types.AttributeValue) (domain.RestaurantRecord, error) {
	id, err := strAttr(item, catalogKey)
	if err != nil {
		return domain.RestaurantRecord{}, err
	}
	name, err := strAttr(item, "name")
	if err != nil {
		return domain.RestaurantRecord{}, err
	}
	rating, _ := floatAttr(item, "rating")      // unrated rows sort last
	reviews, _ := intAttr(item, "review_count") // allow empty

	return domain.RestaurantRecord{
		ID:          id,
		Name:        name,
		Address:     optStrAttr(item, "address"),
		City:        optStrAttr(item, "city"),
		ZipCode:     optStrAttr(item, "zip_code"),
		Rating:      rating,
		ReviewCount: reviews,
		Phone:       optStrAttr(item, "phone"),
		Price:       optStrAttr(item, "price"),
		URL:         optStrAttr(item, "url"),
		Cuisine:     optStrAttr(item, "cuisine"),
	}, nil
}
