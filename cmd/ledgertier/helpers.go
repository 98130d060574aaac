package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/config"
	"github.com/ledgertier/ledgertier/internal/embedding"
	"github.com/ledgertier/ledgertier/internal/inference"
	"github.com/ledgertier/ledgertier/internal/pattern"
	"github.com/ledgertier/ledgertier/internal/predict"
	"github.com/ledgertier/ledgertier/internal/storage"
	"github.com/ledgertier/ledgertier/internal/tier"
)

// initStorage opens the configured database and runs any pending migrations.
// Callers own the returned store and must Close it.
func initStorage(cmd *cobra.Command) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	expandedPath, err := config.ExpandPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand database path: %w", err)
	}

	store, err := storage.NewSQLiteStorage(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func newInferenceClient() (inference.Client, error) {
	apiKey := viper.GetString("inference.api_key")
	if apiKey == "" {
		return nil, common.NewUserError("inference.api_key is not set (or LEDGERTIER_INFERENCE_API_KEY)", nil)
	}
	return inference.NewClient(inference.Config{
		Provider: viper.GetString("inference.provider"),
		APIKey:   apiKey,
		Model:    viper.GetString("inference.model"),
	})
}

func newEmbedder() (inference.Embedder, error) {
	apiKey := viper.GetString("embeddings.api_key")
	if apiKey == "" {
		return nil, common.NewUserError("embeddings.api_key is not set (or LEDGERTIER_EMBEDDINGS_API_KEY)", nil)
	}
	return inference.NewOpenAIEmbedder(apiKey, viper.GetString("embeddings.model"))
}

func newIndex(store *storage.SQLiteStorage) *embedding.Index {
	retention := time.Duration(viper.GetInt("embeddings.retention_hours")) * time.Hour
	return embedding.NewIndex(store, retention)
}

func tierConfig() tier.Config {
	cfg := tier.DefaultConfig()
	cfg.SimilarityThreshold = viper.GetFloat64("similarity.threshold")
	cfg.TopK = viper.GetInt("similarity.top_k")
	cfg.InferenceTimeout = time.Duration(viper.GetInt("inference.timeout_seconds")) * time.Second
	return cfg
}

func newLearner(store *storage.SQLiteStorage) *pattern.Engine {
	return pattern.NewEngine(store, pattern.Config{
		ReinforcementRate: viper.GetFloat64("learning.reinforcement_rate"),
		RejectionPenalty:  viper.GetFloat64("learning.rejection_penalty"),
	})
}

func newGenerator(store *storage.SQLiteStorage) *predict.Generator {
	cfg := predict.DefaultConfig()
	cfg.HighAccuracy = viper.GetFloat64("confidence.high_accuracy")
	cfg.MediumAccuracy = viper.GetFloat64("confidence.medium_accuracy")
	cfg.HighOccurrences = viper.GetInt("confidence.high_occurrences")
	cfg.FuzzyFloor = viper.GetFloat64("learning.fuzzy_floor")
	return predict.NewGenerator(store, newLearner(store), cfg)
}

func newFeedback(store *storage.SQLiteStorage) *predict.Feedback {
	return predict.NewFeedback(store, newLearner(store))
}

func newNormalizer(store *storage.SQLiteStorage) (*tier.Normalizer, error) {
	client, err := newInferenceClient()
	if err != nil {
		return nil, err
	}
	return tier.NewNormalizer(store, client, tierConfig()), nil
}

func newCategorizer(store *storage.SQLiteStorage) (*tier.Categorizer, error) {
	client, err := newInferenceClient()
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder()
	if err != nil {
		return nil, err
	}
	return tier.NewCategorizer(store, client, embedder, newIndex(store), newLearner(store), tierConfig()), nil
}
