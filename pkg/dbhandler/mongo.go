package dbhandler

import (
	"context"
	"fmt"
	"sort"

	"github.com/nao1215/feliz/pkg/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHandler はMongoDBのハンドラ。
type MongoHandler struct {
	// alias は接続の論理名。
	alias string
	// client はMongoDBクライアント。
	client *mongo.Client
	// db は対象データベース。
	db *mongo.Database
	// schemas は利用を宣言したコレクション名。
	schemas map[string]struct{}
}

// OpenMongo はMongoDBクライアントを生成する。
// ドライバは接続を遅延させるため、サーバーが停止していてもここでは失敗しない。
func OpenMongo(ctx context.Context, cfg ConnConfig, schemas []string) (*MongoHandler, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI()))
	if err != nil {
		return nil, fmt.Errorf("(%s) MongoDBクライアントの生成に失敗: %w", cfg.Alias, err)
	}
	return NewMongoHandler(cfg.Alias, client, cfg.Database, schemas), nil
}

// NewMongoHandler は既存のクライアントから MongoHandler を生成する。
func NewMongoHandler(alias string, client *mongo.Client, database string, schemas []string) *MongoHandler {
	set := make(map[string]struct{}, len(schemas))
	for _, s := range schemas {
		set[s] = struct{}{}
	}
	return &MongoHandler{
		alias:   alias,
		client:  client,
		db:      client.Database(database),
		schemas: set,
	}
}

// Kind は store.Mongo を返す。
func (h *MongoHandler) Kind() string {
	return store.Mongo
}

// Alias は接続の論理名を返す。
func (h *MongoHandler) Alias() string {
	return h.alias
}

// Schemas は宣言済みのコレクション名をソートして返す。
func (h *MongoHandler) Schemas() []string {
	out := make([]string, 0, len(h.schemas))
	for s := range h.schemas {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Database は対象データベースを返す。
func (h *MongoHandler) Database() *mongo.Database {
	return h.db
}

// QueryRecords はコレクションtargetから条件に一致するドキュメントを返す。
// スキーマを宣言している場合、宣言外のコレクションは拒否する。
func (h *MongoHandler) QueryRecords(ctx context.Context, target string, conds []Condition, limit int) ([]map[string]any, error) {
	if len(h.schemas) > 0 {
		if _, ok := h.schemas[target]; !ok {
			return nil, fmt.Errorf("(%s) コレクション %s は宣言されていません", h.alias, target)
		}
	}

	filter := bson.M{}
	for _, c := range conds {
		filter[c.Field] = c.Value
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := h.db.Collection(target).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%sの検索に失敗: %w", target, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ドキュメントの読み込みに失敗: %w", err)
	}
	records := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		records = append(records, map[string]any(d))
	}
	return records, nil
}

// Close はクライアントを切断する。
func (h *MongoHandler) Close() error {
	return h.client.Disconnect(context.Background())
}
