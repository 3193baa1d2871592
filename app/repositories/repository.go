// Package repositories is the data-access layer over the document backend.
//
// Every document read is decoded into its model, given its document id and
// validated before it reaches a caller. List reads skip documents that fail
// (logged at WARN); single-document reads report them as upstream failures.
// Failed backend calls are logged at ERROR and returned wrapped in an apperr
// kind.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/validate"
)

// Collection names. They are part of the stored data contract.
const (
	UsersCollection          = "users"
	ProductsCollection       = "products"
	CartCollection           = "cart"
	CommentsCollection       = "comments"
	PaymentMethodsCollection = "paymentMethods"
)

type entity interface {
	SetID(id string)
}

// decode unmarshals d into a T, attaches the document id and validates it.
func decode[T any, PT interface {
	*T
	entity
}](d docstore.Document) (T, error) {
	var v T
	if err := d.Decode(&v); err != nil {
		return v, err
	}
	PT(&v).SetID(d.ID)
	if err := validate.Check(v); err != nil {
		return v, fmt.Errorf("document %s: %w", d.ID, err)
	}
	return v, nil
}

// decodeAll decodes docs, skipping and logging the ones that fail.
func decodeAll[T any, PT interface {
	*T
	entity
}](ctx context.Context, what string, docs []docstore.Document) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode[T, PT](d)
		if err != nil {
			logger.WithCtx(ctx).Warn(what+": skipping malformed document", "id", d.ID, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// getOne reads collection/id into a T. A missing document is NotFound; an
// undecodable one is an upstream failure.
func getOne[T any, PT interface {
	*T
	entity
}](ctx context.Context, store docstore.Store, op, collection, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, apperr.InvalidArgument("%s id is required", collection)
	}
	doc, err := store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return zero, apperr.NotFound("%s %s", collection, id)
		}
		logger.WithCtx(ctx).Error(op+" failed", "id", id, "error", err)
		return zero, apperr.Upstream(op, err)
	}
	v, err := decode[T, PT](doc)
	if err != nil {
		logger.WithCtx(ctx).Error(op+": malformed document", "id", id, "error", err)
		return zero, apperr.Upstream(op, err)
	}
	return v, nil
}

// writeErr maps a failed update of collection/id.
func writeErr(ctx context.Context, op, collection, id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound("%s %s", collection, id)
	}
	logger.WithCtx(ctx).Error(op+" failed", "id", id, "error", err)
	return apperr.Upstream(op, err)
}

// invalid converts a validation failure into an InvalidArgument error that
// still carries the field messages.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrInvalidArgument, err)
}

// Indexes lists the indexes the repositories' queries rely on, including the
// identity backend's account index.
func Indexes() []docstore.Index {
	return []docstore.Index{
		{Collection: ProductsCollection, Keys: []docstore.Order{{Field: "stock", Dir: docstore.Asc}, {Field: "createdAt", Dir: docstore.Desc}}},
		{Collection: ProductsCollection, Keys: []docstore.Order{{Field: "sellerId", Dir: docstore.Asc}}},
		{Collection: CartCollection, Keys: []docstore.Order{{Field: "userId", Dir: docstore.Asc}, {Field: "productId", Dir: docstore.Asc}}, Unique: true},
		{Collection: CommentsCollection, Keys: []docstore.Order{{Field: "productId", Dir: docstore.Asc}, {Field: "createdAt", Dir: docstore.Desc}}},
		{Collection: UsersCollection, Keys: []docstore.Order{{Field: "role", Dir: docstore.Asc}}},
		{Collection: identity.AccountsCollection, Keys: []docstore.Order{{Field: "email", Dir: docstore.Asc}}, Unique: true},
	}
}
