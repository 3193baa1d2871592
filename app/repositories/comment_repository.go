package repositories

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/collection"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/live"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

// CommentRepository appends to and reads comments/{id}. Comments are never
// edited or deleted.
type CommentRepository struct {
	store docstore.Store
}

func NewCommentRepository(store docstore.Store) *CommentRepository {
	return &CommentRepository{store: store}
}

func decodeComment(d docstore.Document) (models.Comment, error) {
	return decode[models.Comment, *models.Comment](d)
}

// newestFirst orders comments by createdAt descending. Comments the backend
// has not stamped yet sort first; ties keep their input order.
func newestFirst(comments []models.Comment) []models.Comment {
	return collection.SortStable(comments, func(a, b models.Comment) bool {
		switch {
		case a.CreatedAt == nil:
			return b.CreatedAt != nil
		case b.CreatedAt == nil:
			return false
		}
		return a.CreatedAt.After(*b.CreatedAt)
	})
}

func commentsPlan(productID string) live.Plan[models.Comment] {
	byProduct := docstore.From(CommentsCollection).Where("productId", docstore.Eq, productID)
	return live.Plan[models.Comment]{
		Name:     "comments.byProduct",
		Primary:  byProduct.OrderBy("createdAt", docstore.Desc),
		Fallback: byProduct,
		Decode:   decodeComment,
		Reshape:  newestFirst,
	}
}

// Add appends a comment to productID and returns its id. Text longer than
// models.MaxCommentLength characters, or holding only whitespace, is rejected
// without a write. Accepted text is stored as given.
func (r *CommentRepository) Add(ctx context.Context, productID, userID, userName, text string) (string, error) {
	if n := utf8.RuneCountInString(text); n > models.MaxCommentLength {
		return "", apperr.InvalidArgument("comment is %d characters, the limit is %d", n, models.MaxCommentLength)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.InvalidArgument("comment text is required")
	}
	if productID == "" {
		return "", apperr.InvalidArgument("product id is required")
	}

	id, err := r.store.Add(ctx, CommentsCollection, docstore.Fields{
		"productId":   productID,
		"userId":      userID,
		"userName":    userName,
		"commentText": text,
		"createdAt":   docstore.ServerTimestamp,
	})
	if err != nil {
		logger.WithCtx(ctx).Error("comments: add failed", "product_id", productID, "error", err)
		return "", apperr.Upstream("comments: add", err)
	}
	logger.WithCtx(ctx).Info("comments: added", "comment_id", id, "product_id", productID)
	return id, nil
}

// ListenByProduct streams the product's comments newest first. If the
// ordered subscription fails, it re-subscribes unordered and sorts each
// snapshot itself.
func (r *CommentRepository) ListenByProduct(ctx context.Context, productID string) (*live.Feed[models.Comment], error) {
	feed, err := live.Listen(ctx, r.store, commentsPlan(productID))
	if err != nil {
		logger.WithCtx(ctx).Error("comments: listen failed", "product_id", productID, "error", err)
		return nil, apperr.Upstream("comments: listen", err)
	}
	return feed, nil
}

// ListByProduct reads the product's comments once, newest first, with the
// same fallback as ListenByProduct.
func (r *CommentRepository) ListByProduct(ctx context.Context, productID string) ([]models.Comment, error) {
	comments, _, err := live.Once(ctx, r.store, commentsPlan(productID))
	if err != nil {
		logger.WithCtx(ctx).Error("comments: list failed", "product_id", productID, "error", err)
		return nil, apperr.Upstream("comments: list", err)
	}
	return comments, nil
}
