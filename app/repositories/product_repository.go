package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/config"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/collection"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/live"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/storage"
	"github.com/shashiranjanraj/campusmart/pkg/validate"
)

// MaxImageBytes is the largest product image accepted.
const MaxImageBytes = 5 << 20

// ErrStorageUnavailable is returned by UploadImage when no blob disk is
// configured.
var ErrStorageUnavailable = errors.New("blob storage is not configured")

// Image is an uploaded product image.
type Image struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProductRepository reads and writes products/{id}.
type ProductRepository struct {
	store       docstore.Store
	disk        storage.Disk
	placeholder string
	now         func() time.Time
}

// NewProductRepository returns a repository over store. disk may be nil, in
// which case uploads fail and new products get the placeholder image.
func NewProductRepository(store docstore.Store, disk storage.Disk) *ProductRepository {
	return &ProductRepository{
		store:       store,
		disk:        disk,
		placeholder: config.PlaceholderImageURL(),
		now:         time.Now,
	}
}

func decodeProduct(d docstore.Document) (models.Product, error) {
	return decode[models.Product, *models.Product](d)
}

func inStock(products []models.Product) []models.Product {
	return collection.Filter(products, func(p models.Product) bool { return p.Stock > 0 })
}

// availablePlan is the in-stock listing: ordered by stock then newest, which
// needs a composite index, with a full scan filtered client-side as the
// fallback.
func availablePlan() live.Plan[models.Product] {
	available := docstore.From(ProductsCollection).Where("stock", docstore.Gt, 0)
	return live.Plan[models.Product]{
		Name: "products.available",
		Primary: available.
			OrderBy("stock", docstore.Asc).
			OrderBy("createdAt", docstore.Desc),
		Fallback: docstore.From(ProductsCollection),
		Decode:   decodeProduct,
		Reshape:  inStock,
	}
}

// ListAvailable returns the products with stock > 0, ordered by stock
// ascending then newest first. When the ordered query fails the products are
// read with a full scan and filtered here, with no ordering guarantee.
func (r *ProductRepository) ListAvailable(ctx context.Context) ([]models.Product, error) {
	products, _, err := live.Once(ctx, r.store, availablePlan())
	if err != nil {
		logger.WithCtx(ctx).Error("products: list available failed", "error", err)
		return nil, apperr.Upstream("products: list available", err)
	}
	return products, nil
}

// ListLive streams the in-stock products. Every update is the full current
// set. Close the feed to stop it.
func (r *ProductRepository) ListLive(ctx context.Context) (*live.Feed[models.Product], error) {
	feed, err := live.Listen(ctx, r.store, live.Plan[models.Product]{
		Name:     "products.live",
		Primary:  docstore.From(ProductsCollection).Where("stock", docstore.Gt, 0),
		Fallback: docstore.From(ProductsCollection),
		Decode:   decodeProduct,
		Reshape:  inStock,
	})
	if err != nil {
		logger.WithCtx(ctx).Error("products: listen failed", "error", err)
		return nil, apperr.Upstream("products: listen", err)
	}
	return feed, nil
}

// Create stores a new product and returns its id. The image URL is, in
// order: in.ImageURL, the uploaded img, or the placeholder. A failed upload
// does not fail the create.
func (r *ProductRepository) Create(ctx context.Context, in models.NewProduct, img *Image) (string, error) {
	if err := validate.Check(in); err != nil {
		return "", invalid(err)
	}

	imageURL := in.ImageURL
	if imageURL == "" && img != nil {
		url, err := r.UploadImage(ctx, *img)
		if err != nil {
			logger.WithCtx(ctx).Warn("products: image upload failed, using placeholder",
				"name", in.Name, "error", err)
		}
		imageURL = url
	}
	if imageURL == "" {
		imageURL = r.placeholder
	}

	id, err := r.store.Add(ctx, ProductsCollection, docstore.Fields{
		"name":        in.Name,
		"description": in.Description,
		"price":       in.Price,
		"stock":       in.Stock,
		"imageUrl":    imageURL,
		"sellerId":    in.SellerID,
		"sellerName":  in.SellerName,
		"createdAt":   docstore.ServerTimestamp,
		"updatedAt":   docstore.ServerTimestamp,
	})
	if err != nil {
		logger.WithCtx(ctx).Error("products: create failed", "seller_id", in.SellerID, "error", err)
		return "", apperr.Upstream("products: create", err)
	}
	logger.WithCtx(ctx).Info("products: created", "product_id", id, "seller_id", in.SellerID)
	return id, nil
}

// UploadImage validates img and stores it under
// product-images/<unix-millis>_<name>, returning its download URL.
func (r *ProductRepository) UploadImage(ctx context.Context, img Image) (string, error) {
	if img.Size > MaxImageBytes {
		return "", apperr.InvalidArgument("image size must be less than 5MB")
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return "", apperr.InvalidArgument("file must be an image")
	}
	if r.disk == nil {
		return "", apperr.Upstream("products: upload image", ErrStorageUnavailable)
	}

	name := path.Base(strings.ReplaceAll(img.Name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	objectPath := fmt.Sprintf("product-images/%d_%s", r.now().UnixMilli(), name)

	if err := r.disk.Put(ctx, objectPath, img.Body, img.Size, img.ContentType); err != nil {
		logger.WithCtx(ctx).Error("products: image upload failed", "path", objectPath, "error", err)
		return "", apperr.Upstream("products: upload image", err)
	}
	url := r.disk.URL(objectPath)
	logger.WithCtx(ctx).Info("products: image uploaded", "url", url)
	return url, nil
}

// GetByID returns the product or a NotFound error.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (models.Product, error) {
	return getOne[models.Product, *models.Product](ctx, r.store, "products: get", ProductsCollection, id)
}

// Update merges the non-nil fields of patch into the product and stamps
// updatedAt, even when patch is empty.
func (r *ProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch) error {
	if err := validate.Check(patch); err != nil {
		return invalid(err)
	}
	if id == "" {
		return apperr.InvalidArgument("product id is required")
	}

	fields := docstore.Fields{"updatedAt": docstore.ServerTimestamp}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Price != nil {
		fields["price"] = *patch.Price
	}
	if patch.Stock != nil {
		fields["stock"] = *patch.Stock
	}
	if patch.ImageURL != nil {
		fields["imageUrl"] = *patch.ImageURL
	}

	if err := r.store.Update(ctx, ProductsCollection, id, fields); err != nil {
		return writeErr(ctx, "products: update", ProductsCollection, id, err)
	}
	logger.WithCtx(ctx).Info("products: updated", "product_id", id)
	return nil
}

// Delete removes the product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.InvalidArgument("product id is required")
	}
	if err := r.store.Delete(ctx, ProductsCollection, id); err != nil {
		return writeErr(ctx, "products: delete", ProductsCollection, id, err)
	}
	logger.WithCtx(ctx).Info("products: deleted", "product_id", id)
	return nil
}

// ListBySeller returns every product of sellerID, in stock or not.
func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Product, error) {
	docs, err := r.store.Find(ctx, docstore.From(ProductsCollection).Where("sellerId", docstore.Eq, sellerID))
	if err != nil {
		logger.WithCtx(ctx).Error("products: list by seller failed", "seller_id", sellerID, "error", err)
		return nil, apperr.Upstream("products: list by seller", err)
	}
	return decodeAll[models.Product, *models.Product](ctx, "products", docs), nil
}
