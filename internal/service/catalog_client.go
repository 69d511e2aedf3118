package service

import (
	"context"
	"fmt"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/money"
	"cart-service/internal/redisclient"
	"cart-service/internal/store"
	"cart-service/internal/util"

	"go.uber.org/zap"
)

// productCacheTTL bounds how stale a cached price/availability snapshot
// may be before the cart falls back to the database.
const productCacheTTL = 30 * time.Second

// PurchasableClient resolves purchasable refs against the product catalog,
// with a Redis snapshot cache in front of the database.
type PurchasableClient struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewPurchasableClient creates a new purchasable catalog client
func NewPurchasableClient(store *store.Store, redis *redisclient.Client) *PurchasableClient {
	return &PurchasableClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// GetUnitPrice returns the current unit price of a purchasable.
func (pc *PurchasableClient) GetUnitPrice(ctx context.Context, ref models.PurchasableRef) (money.Money, error) {
	snap, err := pc.snapshot(ctx, ref)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(snap.Price, snap.Currency), nil
}

// GetAvailableCount returns how many units of a purchasable can be sold.
func (pc *PurchasableClient) GetAvailableCount(ctx context.Context, ref models.PurchasableRef) (int, error) {
	snap, err := pc.snapshot(ctx, ref)
	if err != nil {
		return 0, err
	}
	return snap.Available, nil
}

// snapshot reads the Redis fast path first and falls back to the database,
// repopulating the cache on a miss.
func (pc *PurchasableClient) snapshot(ctx context.Context, ref models.PurchasableRef) (redisclient.ProductSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "PurchasableClient.snapshot")
	defer span.End()

	if ref.Type != models.PurchasableTypeProduct {
		return redisclient.ProductSnapshot{}, fmt.Errorf("unknown purchasable type %q", ref.Type)
	}

	snap, found, err := pc.redis.GetProduct(ctx, ref.ID)
	if err != nil {
		pc.logger.Warn("Product cache lookup failed, falling back to DB",
			zap.Int64("product_id", ref.ID),
			zap.Error(err))
	} else if found {
		util.ProductCacheHitsTotal.WithLabelValues("hit").Inc()
		return snap, nil
	}
	util.ProductCacheHitsTotal.WithLabelValues("miss").Inc()

	product, err := pc.store.GetProductByID(ctx, ref.ID)
	if err != nil {
		return redisclient.ProductSnapshot{}, err
	}

	snap = redisclient.ProductSnapshot{
		Price:     product.Price,
		Currency:  product.Currency,
		Available: product.Available,
	}

	if err := pc.redis.CacheProduct(ctx, product.ID, snap, productCacheTTL); err != nil {
		pc.logger.Warn("Failed to cache product snapshot",
			zap.Int64("product_id", product.ID),
			zap.Error(err))
	}

	return snap, nil
}

// GetProductBySKU looks a product up by its SKU. Reads go straight to the
// database: the snapshot cache is keyed by ID and SKU lookups are rare.
func (pc *PurchasableClient) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "PurchasableClient.GetProductBySKU")
	defer span.End()

	return pc.store.GetProductBySKU(ctx, sku)
}

// CommitStock deducts sold stock once an order is paid, then drops the
// cached snapshot so the next read sees the new count.
func (pc *PurchasableClient) CommitStock(ctx context.Context, ref models.PurchasableRef, quantity int) error {
	ctx, span := util.StartSpan(ctx, "PurchasableClient.CommitStock")
	defer span.End()

	if err := pc.store.CommitStockTx(ctx, ref.ID, quantity); err != nil {
		return err
	}

	if err := pc.redis.InvalidateProduct(ctx, ref.ID); err != nil {
		pc.logger.Warn("Failed to invalidate product cache",
			zap.Int64("product_id", ref.ID),
			zap.Error(err))
	}
	return nil
}

// RestoreStock returns stock after a refund or cancellation.
func (pc *PurchasableClient) RestoreStock(ctx context.Context, ref models.PurchasableRef, quantity int) error {
	ctx, span := util.StartSpan(ctx, "PurchasableClient.RestoreStock")
	defer span.End()

	if err := pc.store.RestoreStock(ctx, ref.ID, quantity); err != nil {
		return err
	}

	if err := pc.redis.InvalidateProduct(ctx, ref.ID); err != nil {
		pc.logger.Warn("Failed to invalidate product cache",
			zap.Int64("product_id", ref.ID),
			zap.Error(err))
	}
	return nil
}

// WarmProductCache preloads every product snapshot into Redis at startup.
func (pc *PurchasableClient) WarmProductCache(ctx context.Context) error {
	pc.logger.Info("Warming product snapshot cache")

	products, err := pc.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	for _, product := range products {
		snap := redisclient.ProductSnapshot{
			Price:     product.Price,
			Currency:  product.Currency,
			Available: product.Available,
		}
		if err := pc.redis.CacheProduct(ctx, product.ID, snap, productCacheTTL); err != nil {
			pc.logger.Error("Failed to cache product",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		}
	}

	pc.logger.Info("Product cache warmed", zap.Int("count", len(products)))
	return nil
}
