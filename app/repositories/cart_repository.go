package repositories

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/collection"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

// joinConcurrency bounds the product reads issued by List.
const joinConcurrency = 8

// CartRepository reads and writes cart/{id}.
type CartRepository struct {
	store    docstore.Store
	products *ProductRepository
}

func NewCartRepository(store docstore.Store, products *ProductRepository) *CartRepository {
	return &CartRepository{store: store, products: products}
}

func (r *CartRepository) lines(ctx context.Context, userID string) ([]docstore.Document, error) {
	return r.store.Find(ctx, docstore.From(CartCollection).Where("userId", docstore.Eq, userID))
}

// Add puts quantity of productID into the user's cart, merging with an
// existing line for the same product. When a concurrent add inserted the line
// first (unique index), the add is retried once as a merge.
func (r *CartRepository) Add(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return apperr.InvalidArgument("quantity must be at least 1")
	}
	if userID == "" || productID == "" {
		return apperr.InvalidArgument("user id and product id are required")
	}

	err := r.merge(ctx, userID, productID, quantity)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		logger.WithCtx(ctx).Warn("cart: concurrent insert, retrying as merge",
			"user_id", userID, "product_id", productID)
		err = r.merge(ctx, userID, productID, quantity)
	}
	if err != nil {
		logger.WithCtx(ctx).Error("cart: add failed", "user_id", userID, "product_id", productID, "error", err)
		return apperr.Upstream("cart: add", err)
	}
	return nil
}

func (r *CartRepository) merge(ctx context.Context, userID, productID string, quantity int) error {
	docs, err := r.store.Find(ctx, docstore.From(CartCollection).
		Where("userId", docstore.Eq, userID).
		Where("productId", docstore.Eq, productID))
	if err != nil {
		return err
	}

	if len(docs) > 0 {
		item, err := decode[models.CartItem, *models.CartItem](docs[0])
		if err != nil {
			return err
		}
		if err := r.store.Update(ctx, CartCollection, item.ID, docstore.Fields{
			"quantity": item.Quantity + quantity,
		}); err != nil {
			return err
		}
		logger.WithCtx(ctx).Info("cart: quantity increased", "cart_item_id", item.ID, "quantity", item.Quantity+quantity)
		return nil
	}

	id, err := r.store.Add(ctx, CartCollection, docstore.Fields{
		"userId":    userID,
		"productId": productID,
		"quantity":  quantity,
		"addedAt":   docstore.ServerTimestamp,
	})
	if err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("cart: item added", "cart_item_id", id)
	return nil
}

// Get returns one cart line.
func (r *CartRepository) Get(ctx context.Context, itemID string) (models.CartItem, error) {
	return getOne[models.CartItem, *models.CartItem](ctx, r.store, "cart: get", CartCollection, itemID)
}

// UpdateQuantity sets the quantity of a line. Non-positive quantities are
// rejected without a write.
func (r *CartRepository) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return apperr.InvalidArgument("quantity must be greater than 0")
	}
	if itemID == "" {
		return apperr.InvalidArgument("cart item id is required")
	}
	if err := r.store.Update(ctx, CartCollection, itemID, docstore.Fields{"quantity": quantity}); err != nil {
		return writeErr(ctx, "cart: update quantity", CartCollection, itemID, err)
	}
	logger.WithCtx(ctx).Info("cart: quantity updated", "cart_item_id", itemID, "quantity", quantity)
	return nil
}

// Remove deletes one line.
func (r *CartRepository) Remove(ctx context.Context, itemID string) error {
	if itemID == "" {
		return apperr.InvalidArgument("cart item id is required")
	}
	if err := r.store.Delete(ctx, CartCollection, itemID); err != nil {
		return writeErr(ctx, "cart: remove", CartCollection, itemID, err)
	}
	logger.WithCtx(ctx).Info("cart: item removed", "cart_item_id", itemID)
	return nil
}

// Clear deletes every line of the user in parallel. The first failure is
// returned; lines already deleted stay deleted.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	docs, err := r.lines(ctx, userID)
	if err != nil {
		logger.WithCtx(ctx).Error("cart: clear failed", "user_id", userID, "error", err)
		return apperr.Upstream("cart: clear", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range docs {
		id := d.ID
		g.Go(func() error {
			return r.store.Delete(gctx, CartCollection, id)
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithCtx(ctx).Error("cart: clear failed", "user_id", userID, "error", err)
		return apperr.Upstream("cart: clear", err)
	}
	logger.WithCtx(ctx).Info("cart: cleared", "user_id", userID, "lines", len(docs))
	return nil
}

// List returns the user's lines joined with their products. Lines whose
// product no longer exists are left out.
func (r *CartRepository) List(ctx context.Context, userID string) ([]models.CartLine, error) {
	docs, err := r.lines(ctx, userID)
	if err != nil {
		logger.WithCtx(ctx).Error("cart: list failed", "user_id", userID, "error", err)
		return nil, apperr.Upstream("cart: list", err)
	}
	items := decodeAll[models.CartItem, *models.CartItem](ctx, "cart", docs)

	joined := make([]*models.CartLine, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(joinConcurrency)
	for i, item := range items {
		g.Go(func() error {
			p, err := r.products.GetByID(gctx, item.ProductID)
			if errors.Is(err, apperr.ErrNotFound) {
				logger.WithCtx(ctx).Debug("cart: product gone, skipping line",
					"cart_item_id", item.ID, "product_id", item.ProductID)
				return nil
			}
			if err != nil {
				return err
			}
			joined[i] = &models.CartLine{CartItemID: item.ID, Quantity: item.Quantity, Product: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithCtx(ctx).Error("cart: list failed", "user_id", userID, "error", err)
		return nil, apperr.Upstream("cart: list", err)
	}

	out := make([]models.CartLine, 0, len(joined))
	for _, l := range joined {
		if l != nil {
			out = append(out, *l)
		}
	}
	return out, nil
}

// Total is the sum of price × quantity over lines.
func (r *CartRepository) Total(lines []models.CartLine) float64 {
	return CartTotal(lines)
}

// CartTotal is the sum of price × quantity over lines.
func CartTotal(lines []models.CartLine) float64 {
	return collection.Sum(lines, func(l models.CartLine) float64 {
		return l.Product.Price * float64(l.Quantity)
	})
}

// Count returns the number of lines in the user's cart, or 0 when they
// cannot be read.
func (r *CartRepository) Count(ctx context.Context, userID string) int {
	docs, err := r.lines(ctx, userID)
	if err != nil {
		logger.WithCtx(ctx).Error("cart: count failed", "user_id", userID, "error", err)
		return 0
	}
	return len(docs)
}
