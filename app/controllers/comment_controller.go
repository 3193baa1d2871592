package controllers

import (
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/pkg/ctx"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/ws"
)

type CommentController struct {
	comments *repositories.CommentRepository
	products *repositories.ProductRepository
}

func NewCommentController(comments *repositories.CommentRepository, products *repositories.ProductRepository) *CommentController {
	return &CommentController{comments: comments, products: products}
}

type commentInput struct {
	CommentText string `json:"commentText"`
}

// POST /api/products/{id}/comments
func (cc *CommentController) Store(c *ctx.Context) {
	var in commentInput
	if !c.BindJSON(&in) {
		return
	}
	productID := c.Param("id")
	if _, err := cc.products.GetByID(c.Context(), productID); err != nil {
		c.Fail(err)
		return
	}
	userName := ""
	if sess := c.Session(); sess != nil {
		userName = sess.UserName()
	}
	id, err := cc.comments.Add(c.Context(), productID, c.UserID(), userName, in.CommentText)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(map[string]string{"id": id})
}

// GET /api/products/{id}/comments
func (cc *CommentController) Index(c *ctx.Context) {
	comments, err := cc.comments.ListByProduct(c.Context(), c.Param("id"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(comments)
}

// GET /api/products/{id}/comments/live upgrades to a WebSocket and sends the
// product's comments, newest first, after every change.
func (cc *CommentController) Live(c *ctx.Context) {
	productID := c.Param("id")
	feed, err := cc.comments.ListenByProduct(c.Context(), productID)
	if err != nil {
		c.Fail(err)
		return
	}
	defer feed.Close()

	if err := ws.Pump(c.W, c.R, feed.Updates()); err != nil {
		logger.WithCtx(c.Context()).Debug("comments: live socket ended", "product_id", productID, "error", err)
	}
	if err := feed.Err(); err != nil {
		logger.WithCtx(c.Context()).Error("comments: live feed failed", "product_id", productID, "error", err)
	}
}
